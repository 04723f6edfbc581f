package models

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDecode marks a remote snapshot that cannot be mapped onto an entity.
// Sparse-but-well-formed records (missing optional fields) decode fine; only
// wrong-typed or structurally broken records fail.
var ErrDecode = errors.New("malformed record")

func decodeErr(entity, uid, field string) error {
	return fmt.Errorf("%w: %s %q field %q", ErrDecode, entity, uid, field)
}

func stringField(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", true
	}
	s, ok := v.(string)
	return s, ok
}

func boolField(raw map[string]any, key string) (bool, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return false, true
	}
	b, ok := v.(bool)
	return b, ok
}

// numberField accepts the numeric shapes a JSON round trip can produce.
func numberField(raw map[string]any, key string) (int64, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, true
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// membersField decodes the nested membership map ({uid: true}) into a sorted
// slice of member ids.
func membersField(raw map[string]any, key string) ([]string, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, true
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	members := make([]string, 0, len(m))
	for uid := range m {
		members = append(members, uid)
	}
	sort.Strings(members)
	return members, true
}

// DecodeUser maps a raw users record onto a User. Credential fields stored
// alongside the profile are ignored.
func DecodeUser(uid string, raw map[string]any) (User, error) {
	u := User{UID: uid}
	var ok bool
	if u.Email, ok = stringField(raw, "email"); !ok {
		return User{}, decodeErr("user", uid, "email")
	}
	if u.DisplayName, ok = stringField(raw, "displayName"); !ok {
		return User{}, decodeErr("user", uid, "displayName")
	}
	if u.PhotoURL, ok = stringField(raw, "photoUrl"); !ok {
		return User{}, decodeErr("user", uid, "photoUrl")
	}
	if u.PushToken, ok = stringField(raw, "pushToken"); !ok {
		return User{}, decodeErr("user", uid, "pushToken")
	}
	return u, nil
}

// DecodeListTask maps one entry of a list's tasks sub-map onto a ListTask.
func DecodeListTask(uid string, raw map[string]any) (ListTask, error) {
	t := ListTask{UID: uid}
	var ok bool
	if t.Name, ok = stringField(raw, "name"); !ok {
		return ListTask{}, decodeErr("task", uid, "name")
	}
	if t.Owner, ok = stringField(raw, "owner"); !ok {
		return ListTask{}, decodeErr("task", uid, "owner")
	}
	if t.Description, ok = stringField(raw, "description"); !ok {
		return ListTask{}, decodeErr("task", uid, "description")
	}
	if t.Icon, ok = stringField(raw, "icon"); !ok {
		return ListTask{}, decodeErr("task", uid, "icon")
	}
	if t.CreatedAt, ok = numberField(raw, "createdAt"); !ok {
		return ListTask{}, decodeErr("task", uid, "createdAt")
	}
	if t.Completed, ok = boolField(raw, "completed"); !ok {
		return ListTask{}, decodeErr("task", uid, "completed")
	}
	return t, nil
}

// DecodeUserList maps a raw userLists record, including its nested tasks
// sub-map, onto a UserList. Task order is unspecified; callers sort.
func DecodeUserList(uid string, raw map[string]any) (UserList, error) {
	l := UserList{UID: uid}
	var ok bool
	if l.Name, ok = stringField(raw, "name"); !ok {
		return UserList{}, decodeErr("list", uid, "name")
	}
	if l.Owner, ok = stringField(raw, "owner"); !ok {
		return UserList{}, decodeErr("list", uid, "owner")
	}
	if l.Description, ok = stringField(raw, "description"); !ok {
		return UserList{}, decodeErr("list", uid, "description")
	}
	if l.Icon, ok = stringField(raw, "icon"); !ok {
		return UserList{}, decodeErr("list", uid, "icon")
	}
	if l.CreatedAt, ok = numberField(raw, "createdAt"); !ok {
		return UserList{}, decodeErr("list", uid, "createdAt")
	}
	if l.Users, ok = membersField(raw, "users"); !ok {
		return UserList{}, decodeErr("list", uid, "users")
	}

	l.Tasks = []ListTask{}
	if v, present := raw["tasks"]; present && v != nil {
		tasksRaw, tok := v.(map[string]any)
		if !tok {
			return UserList{}, decodeErr("list", uid, "tasks")
		}
		for taskID, taskVal := range tasksRaw {
			taskRaw, tok := taskVal.(map[string]any)
			if !tok {
				return UserList{}, decodeErr("list", uid, "tasks/"+taskID)
			}
			task, err := DecodeListTask(taskID, taskRaw)
			if err != nil {
				return UserList{}, err
			}
			l.Tasks = append(l.Tasks, task)
		}
	}
	return l, nil
}

// DecodeFriendship maps a raw friendships record onto a Friendship. FriendID
// is resolved against viewerID: the pair member that is not the viewer.
func DecodeFriendship(uid, viewerID string, raw map[string]any) (Friendship, error) {
	f := Friendship{UID: uid}
	var ok bool
	if f.AreFriends, ok = boolField(raw, "areFriends"); !ok {
		return Friendship{}, decodeErr("friendship", uid, "areFriends")
	}
	if f.Inviter, ok = stringField(raw, "inviter"); !ok {
		return Friendship{}, decodeErr("friendship", uid, "inviter")
	}
	if f.PendingViewAccepted, ok = stringField(raw, "pendingViewAccepted"); !ok {
		return Friendship{}, decodeErr("friendship", uid, "pendingViewAccepted")
	}
	if f.Users, ok = membersField(raw, "users"); !ok {
		return Friendship{}, decodeErr("friendship", uid, "users")
	}
	for _, member := range f.Users {
		if member != viewerID {
			f.FriendID = member
			break
		}
	}
	return f, nil
}

// DecodeListInvite maps a raw listInvites record onto a ListInvite.
func DecodeListInvite(uid string, raw map[string]any) (ListInvite, error) {
	i := ListInvite{UID: uid}
	var ok bool
	if i.ListID, ok = stringField(raw, "listId"); !ok {
		return ListInvite{}, decodeErr("invite", uid, "listId")
	}
	if i.Inviter, ok = stringField(raw, "inviter"); !ok {
		return ListInvite{}, decodeErr("invite", uid, "inviter")
	}
	if i.PendingViewAccepted, ok = stringField(raw, "pendingViewAccepted"); !ok {
		return ListInvite{}, decodeErr("invite", uid, "pendingViewAccepted")
	}
	if i.Users, ok = membersField(raw, "users"); !ok {
		return ListInvite{}, decodeErr("invite", uid, "users")
	}
	return i, nil
}

// DecodeActivityLog maps a raw listActivityLog record onto an ActivityLog.
// Unknown action values decode as-is; display mapping handles the fallback.
func DecodeActivityLog(uid string, raw map[string]any) (ActivityLog, error) {
	a := ActivityLog{UID: uid}
	var ok bool
	if a.ListID, ok = stringField(raw, "listId"); !ok {
		return ActivityLog{}, decodeErr("activity", uid, "listId")
	}
	action, ok := stringField(raw, "action")
	if !ok {
		return ActivityLog{}, decodeErr("activity", uid, "action")
	}
	a.Action = ActivityLogAction(action)
	if a.Subject, ok = stringField(raw, "subject"); !ok {
		return ActivityLog{}, decodeErr("activity", uid, "subject")
	}
	if a.ActionData, ok = stringField(raw, "actionData"); !ok {
		return ActivityLog{}, decodeErr("activity", uid, "actionData")
	}
	if a.User, ok = stringField(raw, "user"); !ok {
		return ActivityLog{}, decodeErr("activity", uid, "user")
	}
	if a.Timestamp, ok = numberField(raw, "timestamp"); !ok {
		return ActivityLog{}, decodeErr("activity", uid, "timestamp")
	}
	return a, nil
}
