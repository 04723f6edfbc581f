package models

// User is a registered account. Users are created on registration and never
// deleted in-app.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	PushToken   string `json:"pushToken,omitempty"`
}

// UserList is a to-do list shared between its owner and any number of
// collaborators. Owner is always a member of Users.
type UserList struct {
	UID         string     `json:"uid"`
	Name        string     `json:"name"`
	CreatedAt   int64      `json:"createdAt"`
	Owner       string     `json:"owner"`
	Users       []string   `json:"users"`
	Tasks       []ListTask `json:"tasks"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon,omitempty"`
}

// ListTask lives under its parent UserList and shares its lifecycle.
type ListTask struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	CreatedAt   int64  `json:"createdAt"`
	Completed   bool   `json:"completed"`
	Owner       string `json:"owner"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Friendship links an unordered pair of users. While a request is pending,
// Inviter holds the requesting user and AreFriends is false. On acceptance
// Inviter is cleared, AreFriends flips to true and PendingViewAccepted marks
// the party with an unseen-acceptance banner; acknowledging clears it.
// FriendID is derived at decode time: the member that is not the viewer.
type Friendship struct {
	UID                 string   `json:"uid"`
	AreFriends          bool     `json:"areFriends"`
	Users               []string `json:"users"`
	FriendID            string   `json:"friendId"`
	Inviter             string   `json:"inviter,omitempty"`
	PendingViewAccepted string   `json:"pendingViewAccepted,omitempty"`
}

// ListInvite is a list-membership offer with the same three-state lifecycle
// as Friendship, scoped to ListID.
type ListInvite struct {
	UID                 string   `json:"uid"`
	ListID              string   `json:"listId"`
	Users               []string `json:"users"`
	Inviter             string   `json:"inviter,omitempty"`
	PendingViewAccepted string   `json:"pendingViewAccepted,omitempty"`
}

// ActivityLog is one entry of a list's append-only audit trail. ActionData
// optionally carries a serialized key/value diff of the change.
type ActivityLog struct {
	UID        string            `json:"uid"`
	ListID     string            `json:"listId"`
	Action     ActivityLogAction `json:"action"`
	Subject    string            `json:"subject"`
	ActionData string            `json:"actionData,omitempty"`
	User       string            `json:"user"`
	Timestamp  int64             `json:"timestamp"`
}

// ActivityLogAction enumerates every auditable user action.
type ActivityLogAction string

const (
	ActionCreatedList              ActivityLogAction = "createdList"
	ActionUpdatedList              ActivityLogAction = "updatedList"
	ActionAddedTask                ActivityLogAction = "addedTask"
	ActionUpdatedTask              ActivityLogAction = "updatedTask"
	ActionCompletedTask            ActivityLogAction = "completedTask"
	ActionUncompletedTask          ActivityLogAction = "uncompletedTask"
	ActionRemovedTask              ActivityLogAction = "removedTask"
	ActionInvitedCollaborator      ActivityLogAction = "invitedCollaborator"
	ActionCollaboratorLeft         ActivityLogAction = "collaboratorLeft"
	ActionRemovedCollaborator      ActivityLogAction = "removedCollaborator"
	ActionCancelCollaboratorInvite ActivityLogAction = "cancelCollaboratorInvite"
	ActionCollaboratorDeclined     ActivityLogAction = "collaboratorDeclined"
	ActionCollaboratorAccepted     ActivityLogAction = "collaboratorAccepted"
)

// RemovedValue is recorded in an activity diff when an optional field was
// cleared, so history stays legible instead of silently omitting the field.
const RemovedValue = "(removed)"
