// Package derive holds the pure view-shaping helpers: sorting, display
// mapping for activity entries, and id-to-entity joins. Everything here is
// deterministic and free of side effects unless documented otherwise.
package derive

import (
	"regexp"
	"sort"
	"time"

	"github.com/tandemlist/tandem/internal/models"
)

// SortTasks returns the tasks in a new slice, stable-sorted ascending by
// creation time.
func SortTasks(tasks []models.ListTask) []models.ListTask {
	sorted := make([]models.ListTask, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt < sorted[j].CreatedAt
	})
	return sorted
}

// SortLists sorts every list's tasks in place, then returns the lists in a
// new slice stable-sorted ascending by creation time. The input's nested task
// order is mutated; callers must treat the argument as consumed.
func SortLists(lists []models.UserList) []models.UserList {
	for i := range lists {
		lists[i].Tasks = SortTasks(lists[i].Tasks)
	}
	sorted := make([]models.UserList, len(lists))
	copy(sorted, lists)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt < sorted[j].CreatedAt
	})
	return sorted
}

// SortActivityLogs returns the entries in a new slice, stable-sorted
// ascending by timestamp.
func SortActivityLogs(logs []models.ActivityLog) []models.ActivityLog {
	sorted := make([]models.ActivityLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return sorted
}

// LogActionText maps an action to its display label. Total over any input;
// unknown actions get the fallback label.
func LogActionText(action models.ActivityLogAction) string {
	switch action {
	case models.ActionCreatedList:
		return "Created list"
	case models.ActionUpdatedList:
		return "Updated list"
	case models.ActionAddedTask:
		return "Added Task"
	case models.ActionUpdatedTask:
		return "Updated Task"
	case models.ActionCompletedTask:
		return "Completed Task"
	case models.ActionUncompletedTask:
		return "Uncompleted Task"
	case models.ActionRemovedTask:
		return "Deleted Task"
	case models.ActionInvitedCollaborator:
		return "Invited collaborator"
	case models.ActionCollaboratorLeft:
		return "Collaborator left"
	case models.ActionRemovedCollaborator:
		return "Removed collaborator"
	case models.ActionCancelCollaboratorInvite:
		return "Cancel invite"
	case models.ActionCollaboratorDeclined:
		return "Invite declined"
	case models.ActionCollaboratorAccepted:
		return "Collaborator joined"
	default:
		return "Unknown log"
	}
}

// Color tokens used by the activity views.
const (
	ColorGreen          = "#1abc9c"
	ColorDarkGreen      = "#16a085"
	ColorOrange         = "#f39c12"
	ColorYellow         = "#f1c40f"
	ColorRed            = "#e74c3c"
	ColorDarkRed        = "#c0392b"
	ColorBlue           = "#3498db"
	ColorBlack          = "#000"
	ColorGreyBackground = "#f1f2f2"
)

// ActivityActionColor maps an action to its accent color. Total over any
// input; unknown actions get black.
func ActivityActionColor(action models.ActivityLogAction) string {
	switch action {
	case models.ActionCreatedList:
		return ColorDarkGreen
	case models.ActionUpdatedList:
		return ColorOrange
	case models.ActionAddedTask:
		return ColorGreen
	case models.ActionUpdatedTask:
		return ColorYellow
	case models.ActionCompletedTask:
		return ColorGreen
	case models.ActionUncompletedTask:
		return ColorRed
	case models.ActionRemovedTask:
		return ColorRed
	case models.ActionInvitedCollaborator:
		return ColorBlue
	case models.ActionCollaboratorLeft:
		return ColorBlue
	case models.ActionRemovedCollaborator:
		return ColorDarkRed
	case models.ActionCancelCollaboratorInvite:
		return ColorDarkRed
	case models.ActionCollaboratorDeclined:
		return ColorDarkRed
	case models.ActionCollaboratorAccepted:
		return ColorBlue
	default:
		return ColorBlack
	}
}

// FriendshipID returns the uid of the first friendship whose FriendID matches
// userID, or "" when none does. Callers keep at most one friendship per user
// pair; this function does not enforce that.
func FriendshipID(userID string, friendships []models.Friendship) string {
	for _, friendship := range friendships {
		if friendship.FriendID == userID {
			return friendship.UID
		}
	}
	return ""
}

// FriendIDsToUsers joins user ids against linkedUsers, preserving input
// order. Ids with no matching user are silently dropped.
func FriendIDsToUsers(userIDs []string, linkedUsers []models.User) []models.User {
	result := []models.User{}
	for _, userID := range userIDs {
		for _, user := range linkedUsers {
			if user.UID == userID {
				result = append(result, user)
				break
			}
		}
	}
	return result
}

// ListIDsToLists joins list ids against lists with the same contract as
// FriendIDsToUsers.
func ListIDsToLists(listIDs []string, lists []models.UserList) []models.UserList {
	result := []models.UserList{}
	for _, listID := range listIDs {
		for _, list := range lists {
			if list.UID == listID {
				result = append(result, list)
				break
			}
		}
	}
	return result
}

// FormatDateTime renders an epoch-milliseconds timestamp as "date, time" in
// local time.
func FormatDateTime(timestampMs int64) string {
	ts := time.UnixMilli(timestampMs)
	return ts.Format("1/2/2006") + ", " + ts.Format("3:04:05 PM")
}

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w\w+)+$`)

// ValidateEmail reports whether the address looks deliverable.
func ValidateEmail(email string) bool {
	if email == "" {
		return false
	}
	return emailPattern.MatchString(email)
}

var remoteCodePattern = regexp.MustCompile(`\[([^\]]+)\]`)

// SanitizeRemoteError strips the first bracketed error-code marker a backend
// prepends to its messages, leaving user-presentable text.
func SanitizeRemoteError(message string) string {
	loc := remoteCodePattern.FindStringIndex(message)
	if loc == nil {
		return message
	}
	return message[:loc[0]] + message[loc[1]:]
}
