package store

import "testing"

func TestValueAt(t *testing.T) {
	record := map[string]any{
		"name":  "Trip",
		"users": map[string]any{"u1": true},
	}

	if got := ValueAt(record, SplitPath("users/u1")); got != true {
		t.Fatalf("expected true, got %v", got)
	}
	if got := ValueAt(record, SplitPath("users/u2")); got != nil {
		t.Fatalf("expected nil for missing member, got %v", got)
	}
	if got := ValueAt(record, SplitPath("name/sub")); got != nil {
		t.Fatalf("expected nil when descending a scalar, got %v", got)
	}
}

func TestSetAt_CreatesIntermediateMaps(t *testing.T) {
	record := map[string]any{}
	SetAt(record, SplitPath("tasks/t1/completed"), true)

	if got := ValueAt(record, SplitPath("tasks/t1/completed")); got != true {
		t.Fatalf("expected nested write, got %v", got)
	}

	SetAt(record, SplitPath("tasks/t1/completed"), nil)
	if got := ValueAt(record, SplitPath("tasks/t1/completed")); got != nil {
		t.Fatalf("expected nil write to delete leaf, got %v", got)
	}
}

func TestApplyUpdate_NilRemovesKey(t *testing.T) {
	record := map[string]any{
		"name":        "old",
		"description": "keep me not",
	}
	ApplyUpdate(record, nil, map[string]any{
		"name":        "new",
		"description": nil,
	})

	if record["name"] != "new" {
		t.Fatalf("expected name updated, got %v", record["name"])
	}
	if _, ok := record["description"]; ok {
		t.Fatal("expected description removed")
	}
}

func TestFilterMatches(t *testing.T) {
	record := map[string]any{
		"listId": "l1",
		"users":  map[string]any{"u1": true},
	}

	if !(Filter{Field: "listId", Value: "l1"}).Matches(record) {
		t.Fatal("expected scalar filter match")
	}
	if !(Filter{Field: "users/u1", Value: true}).Matches(record) {
		t.Fatal("expected nested filter match")
	}
	if (Filter{Field: "users/u2", Value: true}).Matches(record) {
		t.Fatal("expected nested filter miss")
	}
	if !(Filter{}).Matches(record) {
		t.Fatal("expected zero filter to match everything")
	}
}

func TestDeepCopy_Isolates(t *testing.T) {
	record := map[string]any{
		"users": map[string]any{"u1": true},
	}
	cloned := DeepCopy(record)
	SetAt(cloned, SplitPath("users/u2"), true)

	if got := ValueAt(record, SplitPath("users/u2")); got != nil {
		t.Fatal("expected source record untouched after mutating the clone")
	}
}
