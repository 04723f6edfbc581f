package models

import (
	"errors"
	"testing"
)

func TestDecodeUserList_Sparse(t *testing.T) {
	raw := map[string]any{
		"name":      "Groceries",
		"owner":     "u1",
		"createdAt": float64(1700000000000),
		"users":     map[string]any{"u1": true},
	}

	list, err := DecodeUserList("l1", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.UID != "l1" || list.Name != "Groceries" || list.Owner != "u1" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list.Description != "" || list.Icon != "" {
		t.Fatalf("expected empty optionals, got %+v", list)
	}
	if len(list.Tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(list.Tasks))
	}
	if list.CreatedAt != 1700000000000 {
		t.Fatalf("expected createdAt preserved, got %d", list.CreatedAt)
	}
}

func TestDecodeUserList_NestedTasks(t *testing.T) {
	raw := map[string]any{
		"name":      "Trip",
		"owner":     "u1",
		"createdAt": int64(5),
		"users":     map[string]any{"u1": true, "u2": true},
		"tasks": map[string]any{
			"t1": map[string]any{
				"name":      "Pack",
				"owner":     "u2",
				"createdAt": int64(7),
				"completed": true,
			},
		},
	}

	list, err := DecodeUserList("l1", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Users) != 2 || list.Users[0] != "u1" || list.Users[1] != "u2" {
		t.Fatalf("expected sorted members, got %v", list.Users)
	}
	if len(list.Tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(list.Tasks))
	}
	task := list.Tasks[0]
	if task.UID != "t1" || task.Name != "Pack" || !task.Completed || task.CreatedAt != 7 {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestDecodeUserList_WrongType(t *testing.T) {
	raw := map[string]any{
		"name":      42,
		"owner":     "u1",
		"createdAt": int64(5),
		"users":     map[string]any{"u1": true},
	}

	_, err := DecodeUserList("l1", raw)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeFriendship_FriendID(t *testing.T) {
	raw := map[string]any{
		"areFriends": false,
		"inviter":    "u1",
		"users":      map[string]any{"u1": true, "u2": true},
	}

	f, err := DecodeFriendship("f1", "u1", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FriendID != "u2" {
		t.Fatalf("expected friendId u2, got %q", f.FriendID)
	}
	if f.AreFriends || f.Inviter != "u1" || f.PendingViewAccepted != "" {
		t.Fatalf("unexpected friendship: %+v", f)
	}
}

func TestDecodeListInvite(t *testing.T) {
	raw := map[string]any{
		"listId":              "l9",
		"inviter":             nil,
		"pendingViewAccepted": "u1",
		"users":               map[string]any{"u1": true, "u2": true},
	}

	invite, err := DecodeListInvite("i1", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invite.ListID != "l9" || invite.Inviter != "" || invite.PendingViewAccepted != "u1" {
		t.Fatalf("unexpected invite: %+v", invite)
	}
}

func TestDecodeActivityLog_UnknownActionKept(t *testing.T) {
	raw := map[string]any{
		"listId":    "l1",
		"action":    "somethingNew",
		"subject":   "x",
		"user":      "u1",
		"timestamp": float64(12),
	}

	entry, err := DecodeActivityLog("a1", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Action != ActivityLogAction("somethingNew") {
		t.Fatalf("expected raw action preserved, got %q", entry.Action)
	}
}

func TestDecodeUser_IgnoresCredentialFields(t *testing.T) {
	raw := map[string]any{
		"email":        "a@b.com",
		"displayName":  "Alice",
		"passwordHash": "$2a$10$abcdef",
	}

	u, err := DecodeUser("u1", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Email != "a@b.com" || u.DisplayName != "Alice" || u.PushToken != "" {
		t.Fatalf("unexpected user: %+v", u)
	}
}
