// Package services is the mutation façade: each operation issues the primary
// remote writes plus best-effort secondary effects (an activity-log entry and
// a push notification). Secondary-effect failures are logged, never returned;
// multi-step fan-outs are sequential with no atomicity across steps.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tandemlist/tandem/internal/models"
	"github.com/tandemlist/tandem/internal/store"
)

var (
	ErrNotSignedIn        = errors.New("no user signed in")
	ErrValidation         = errors.New("validation failed")
	ErrFriendshipNotFound = errors.New("friendship not found")

	ErrInvalidEmail     = fmt.Errorf("%w: invalid email address", ErrValidation)
	ErrDisplayNameTaken = fmt.Errorf("%w: display name already taken", ErrValidation)
)

// Seam for tests that assert recorded timestamps.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// DataService mutates lists, tasks, friendships and invites on behalf of the
// signed-in user.
type DataService struct {
	remote   store.RemoteStore
	session  Session
	notifier Notifier
	log      *zap.Logger
}

func NewDataService(remote store.RemoteStore, session Session, notifier Notifier, log *zap.Logger) *DataService {
	return &DataService{remote: remote, session: session, notifier: notifier, log: log}
}

// AddUserList creates a list owned by the current user with them as the sole
// member, and records a created-list entry capturing the provided fields.
func (s *DataService) AddUserList(ctx context.Context, name, description, icon string) (*models.UserList, error) {
	user := s.session.CurrentUser()
	if user == nil {
		return nil, ErrNotSignedIn
	}

	uid := s.remote.Push(store.CollectionUserLists)
	record := map[string]any{
		"name":      name,
		"owner":     user.UID,
		"createdAt": nowMillis(),
		"users":     map[string]any{user.UID: true},
	}
	if description != "" {
		record["description"] = description
	}
	if icon != "" {
		record["icon"] = icon
	}

	if err := s.remote.Write(ctx, store.CollectionUserLists+"/"+uid, record); err != nil {
		return nil, fmt.Errorf("creating list: %w", err)
	}

	data := map[string]string{"name": name}
	if description != "" {
		data["description"] = description
	}
	if icon != "" {
		data["icon"] = icon
	}
	s.logActivity(ctx, uid, models.ActionCreatedList, name, encodeActionData(data), user.UID)

	list, err := models.DecodeUserList(uid, record)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// UpdateUserList writes the new field values; empty optionals are cleared at
// the remote store. An updated-list entry is recorded only when something
// actually changed, with cleared fields marked by the removed sentinel; the
// same condition gates the push to other members, so a no-op update is silent.
func (s *DataService) UpdateUserList(ctx context.Context, list models.UserList, name, description, icon string) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	fields := map[string]any{
		"name":        name,
		"description": optionalValue(description),
		"icon":        optionalValue(icon),
	}
	if err := s.remote.Update(ctx, store.CollectionUserLists+"/"+list.UID, fields); err != nil {
		return fmt.Errorf("updating list: %w", err)
	}

	diff := map[string]string{}
	diffField(diff, "name", list.Name, name)
	diffField(diff, "description", list.Description, description)
	diffField(diff, "icon", list.Icon, icon)
	if len(diff) > 0 {
		s.logActivity(ctx, list.UID, models.ActionUpdatedList, list.Name, encodeActionData(diff), user.UID)
		s.notify(ctx, otherMembers(list.Users, user.UID),
			"List updated",
			fmt.Sprintf("%s updated the '%s' list", user.Email, list.Name))
	}
	return nil
}

// DeleteUserList removes the list, then its activity-log entries, then
// notifies former members. A failure between steps leaves orphaned log
// entries; there is no transaction.
func (s *DataService) DeleteUserList(ctx context.Context, list models.UserList) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	if err := s.remote.Remove(ctx, store.CollectionUserLists+"/"+list.UID); err != nil {
		return fmt.Errorf("deleting list: %w", err)
	}

	entries, err := s.remote.QueryOnce(ctx, store.CollectionActivityLog, store.Filter{Field: "listId", Value: list.UID})
	if err != nil {
		s.log.Warn("querying activity entries for deleted list", zap.String("list", list.UID), zap.Error(err))
	}
	for uid := range entries {
		if err := s.remote.Remove(ctx, store.CollectionActivityLog+"/"+uid); err != nil {
			s.log.Warn("removing activity entry", zap.String("entry", uid), zap.Error(err))
		}
	}

	s.notify(ctx, otherMembers(list.Users, user.UID),
		"List deleted",
		fmt.Sprintf("%s deleted the '%s' list", user.Email, list.Name))
	return nil
}

// AddTaskToList creates a task under the list's tasks sub-map.
func (s *DataService) AddTaskToList(ctx context.Context, list models.UserList, name, description, icon string) (*models.ListTask, error) {
	user := s.session.CurrentUser()
	if user == nil {
		return nil, ErrNotSignedIn
	}

	uid := s.remote.Push(store.CollectionUserLists + "/" + list.UID + "/tasks")
	record := map[string]any{
		"name":      name,
		"owner":     user.UID,
		"createdAt": nowMillis(),
		"completed": false,
	}
	if description != "" {
		record["description"] = description
	}
	if icon != "" {
		record["icon"] = icon
	}

	path := store.CollectionUserLists + "/" + list.UID + "/tasks/" + uid
	if err := s.remote.Write(ctx, path, record); err != nil {
		return nil, fmt.Errorf("adding task: %w", err)
	}

	data := map[string]string{"name": name}
	if description != "" {
		data["description"] = description
	}
	s.logActivity(ctx, list.UID, models.ActionAddedTask, name, encodeActionData(data), user.UID)

	s.notify(ctx, otherMembers(list.Users, user.UID),
		"New task added",
		fmt.Sprintf("%s added '%s' to the '%s' list", user.Email, name, list.Name))

	task, err := models.DecodeListTask(uid, record)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask writes new task field values with the same clearing, diff and
// notification contract as UpdateUserList.
func (s *DataService) UpdateTask(ctx context.Context, list models.UserList, task models.ListTask, name, description, icon string) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	fields := map[string]any{
		"name":        name,
		"description": optionalValue(description),
		"icon":        optionalValue(icon),
	}
	path := store.CollectionUserLists + "/" + list.UID + "/tasks/" + task.UID
	if err := s.remote.Update(ctx, path, fields); err != nil {
		return fmt.Errorf("updating task: %w", err)
	}

	diff := map[string]string{}
	diffField(diff, "name", task.Name, name)
	diffField(diff, "description", task.Description, description)
	diffField(diff, "icon", task.Icon, icon)
	if len(diff) > 0 {
		s.logActivity(ctx, list.UID, models.ActionUpdatedTask, task.Name, encodeActionData(diff), user.UID)
		s.notify(ctx, otherMembers(list.Users, user.UID),
			"Task updated",
			fmt.Sprintf("%s updated the task '%s'", user.Email, task.Name))
	}
	return nil
}

// SetTaskComplete toggles a task's completed flag. Completion entries carry
// no data payload.
func (s *DataService) SetTaskComplete(ctx context.Context, list models.UserList, task models.ListTask, completed bool) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	path := store.CollectionUserLists + "/" + list.UID + "/tasks/" + task.UID + "/completed"
	if err := s.remote.Write(ctx, path, completed); err != nil {
		return fmt.Errorf("setting task completion: %w", err)
	}

	action := models.ActionCompletedTask
	title := "Task done!"
	body := fmt.Sprintf("%s completed '%s'", user.Email, task.Name)
	if !completed {
		action = models.ActionUncompletedTask
		title = "Task undone"
		body = fmt.Sprintf("%s uncompleted '%s'", user.Email, task.Name)
	}
	s.logActivity(ctx, list.UID, action, task.Name, "", user.UID)

	s.notify(ctx, otherMembers(list.Users, user.UID), title, body)
	return nil
}

// DeleteTaskFromList removes a task and records which task was deleted.
func (s *DataService) DeleteTaskFromList(ctx context.Context, list models.UserList, task models.ListTask) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	path := store.CollectionUserLists + "/" + list.UID + "/tasks/" + task.UID
	if err := s.remote.Remove(ctx, path); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	s.logActivity(ctx, list.UID, models.ActionRemovedTask, task.Name,
		encodeActionData(map[string]string{"task": task.Name}), user.UID)

	s.notify(ctx, otherMembers(list.Users, user.UID),
		"Task deleted",
		fmt.Sprintf("%s deleted '%s' from the '%s' list", user.Email, task.Name, list.Name))
	return nil
}

// logActivity appends one audit entry. Best effort: a failure is logged and
// never fails the primary mutation.
func (s *DataService) logActivity(ctx context.Context, listID string, action models.ActivityLogAction, subject, actionData, userID string) {
	uid := s.remote.Push(store.CollectionActivityLog)
	record := map[string]any{
		"listId":    listID,
		"action":    string(action),
		"subject":   subject,
		"user":      userID,
		"timestamp": nowMillis(),
	}
	if actionData != "" {
		record["actionData"] = actionData
	}
	if err := s.remote.Write(ctx, store.CollectionActivityLog+"/"+uid, record); err != nil {
		s.log.Warn("recording activity entry", zap.String("list", listID), zap.Error(err))
	}
}

// notify pushes to the given users. Best effort, same as logActivity.
func (s *DataService) notify(ctx context.Context, userIDs []string, title, body string) {
	if len(userIDs) == 0 {
		return
	}
	if err := s.notifier.NotifyUsers(ctx, userIDs, title, body); err != nil {
		s.log.Warn("sending notification", zap.String("title", title), zap.Error(err))
	}
}

func (s *DataService) fetchUser(ctx context.Context, userID string) (*models.User, error) {
	value, err := s.remote.ReadOnce(ctx, store.CollectionUsers+"/"+userID)
	if err != nil {
		return nil, fmt.Errorf("reading user: %w", err)
	}
	raw, ok := value.(map[string]any)
	if !ok {
		return nil, nil
	}
	user, err := models.DecodeUser(userID, raw)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func otherMembers(members []string, userID string) []string {
	others := []string{}
	for _, member := range members {
		if member != userID {
			others = append(others, member)
		}
	}
	return others
}

// optionalValue maps an empty optional to nil so the remote store clears the
// field instead of storing an empty string.
func optionalValue(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// diffField records a changed field's new value; cleared values are recorded
// with the removed sentinel so history stays legible.
func diffField(diff map[string]string, field, previous, current string) {
	if previous == current {
		return
	}
	if current == "" {
		diff[field] = models.RemovedValue
		return
	}
	diff[field] = current
}

func encodeActionData(data map[string]string) string {
	encoded, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(encoded)
}
