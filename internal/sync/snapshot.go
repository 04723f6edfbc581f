package sync

import (
	"github.com/tandemlist/tandem/internal/derive"
	"github.com/tandemlist/tandem/internal/models"
)

// Snapshot is one consistent view of the synchronized state. Slices are owned
// by the snapshot; derived helpers implement the join rules the screens use.
type Snapshot struct {
	CurrentUserID string
	UserLists     []models.UserList
	ListInvites   []models.ListInvite
	LinkedLists   []models.UserList
	Friendships   []models.Friendship
	LinkedUsers   []models.User
	ActivityLog   []models.ActivityLog
	CurrentList   *models.UserList
}

// Friends returns the profiles of confirmed friends, joined through
// LinkedUsers.
func (s Snapshot) Friends() []models.User {
	ids := []string{}
	for _, friendship := range s.Friendships {
		if friendship.AreFriends {
			ids = append(ids, friendship.FriendID)
		}
	}
	return derive.FriendIDsToUsers(ids, s.LinkedUsers)
}

// IncomingFriendRequests returns pending friendships initiated by someone
// else.
func (s Snapshot) IncomingFriendRequests() []models.Friendship {
	result := []models.Friendship{}
	for _, friendship := range s.Friendships {
		if !friendship.AreFriends && friendship.Inviter != "" && friendship.Inviter != s.CurrentUserID {
			result = append(result, friendship)
		}
	}
	return result
}

// OutgoingFriendRequests returns pending friendships the current user
// initiated.
func (s Snapshot) OutgoingFriendRequests() []models.Friendship {
	result := []models.Friendship{}
	for _, friendship := range s.Friendships {
		if !friendship.AreFriends && friendship.Inviter == s.CurrentUserID {
			result = append(result, friendship)
		}
	}
	return result
}

// IncomingInvites returns list invites sent by someone else and not yet
// resolved.
func (s Snapshot) IncomingInvites() []models.ListInvite {
	result := []models.ListInvite{}
	for _, invite := range s.ListInvites {
		if invite.Inviter != "" && invite.Inviter != s.CurrentUserID {
			result = append(result, invite)
		}
	}
	return result
}

// InvitedLists joins the incoming invites to their linked lists.
func (s Snapshot) InvitedLists() []models.UserList {
	ids := []string{}
	for _, invite := range s.IncomingInvites() {
		ids = append(ids, invite.ListID)
	}
	return derive.ListIDsToLists(ids, s.LinkedLists)
}

// OwnedLists returns the lists the current user owns.
func (s Snapshot) OwnedLists() []models.UserList {
	result := []models.UserList{}
	for _, list := range s.UserLists {
		if list.Owner == s.CurrentUserID {
			result = append(result, list)
		}
	}
	return result
}

// SharedLists returns the lists the current user is a member of but does not
// own.
func (s Snapshot) SharedLists() []models.UserList {
	result := []models.UserList{}
	for _, list := range s.UserLists {
		if list.Owner != s.CurrentUserID {
			result = append(result, list)
		}
	}
	return result
}

// PendingNotificationCount is the badge count: incoming invites, incoming
// friend requests, and acceptances the current user has not yet seen.
func (s Snapshot) PendingNotificationCount() int {
	count := len(s.IncomingInvites()) + len(s.IncomingFriendRequests())
	for _, friendship := range s.Friendships {
		if friendship.PendingViewAccepted == s.CurrentUserID {
			count++
		}
	}
	return count
}

// PendingViewListIDs returns the ids of lists whose invites were accepted but
// not yet acknowledged by the current user: invites with no inviter and the
// pending-view marker set to the current user.
func (s Snapshot) PendingViewListIDs() []string {
	ids := []string{}
	for _, invite := range s.ListInvites {
		if invite.Inviter == "" && invite.PendingViewAccepted == s.CurrentUserID {
			ids = append(ids, invite.ListID)
		}
	}
	return ids
}
