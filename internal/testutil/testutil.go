// Package testutil provides testing utilities and helpers.
package testutil

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

// AssertEqual compares two values and fails the test if they're not equal.
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertNotEqual compares two values and fails the test if they're equal.
func AssertNotEqual(t *testing.T, notExpected, actual interface{}, msg string) {
	t.Helper()
	if notExpected == actual {
		t.Errorf("%s: expected value to not equal %v", msg, notExpected)
	}
}

// AssertNil fails the test if the value is not nil.
func AssertNil(t *testing.T, value interface{}, msg string) {
	t.Helper()
	if value != nil {
		t.Errorf("%s: expected nil, got %v", msg, value)
	}
}

// AssertNotNil fails the test if the value is nil.
func AssertNotNil(t *testing.T, value interface{}, msg string) {
	t.Helper()
	if value == nil {
		t.Errorf("%s: expected non-nil value", msg)
	}
}

// AssertTrue fails the test if the value is not true.
func AssertTrue(t *testing.T, value bool, msg string) {
	t.Helper()
	if !value {
		t.Errorf("%s: expected true", msg)
	}
}

// AssertFalse fails the test if the value is not false.
func AssertFalse(t *testing.T, value bool, msg string) {
	t.Helper()
	if value {
		t.Errorf("%s: expected false", msg)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertContains fails the test if s does not contain substr.
func AssertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: expected %q to contain %q", msg, s, substr)
	}
}

// RandomUUID generates a random UUID string for testing.
func RandomUUID() string {
	return uuid.NewString()
}

// RandomEmail generates a random email address for testing.
func RandomEmail() string {
	return "test-" + uuid.NewString()[:8] + "@example.com"
}
