package sync

import (
	"testing"

	"github.com/tandemlist/tandem/internal/models"
)

func relationshipSnapshot() Snapshot {
	return Snapshot{
		CurrentUserID: me,
		UserLists: []models.UserList{
			{UID: "owned", Owner: me, Users: []string{me}},
			{UID: "shared", Owner: other, Users: []string{me, other}},
		},
		Friendships: []models.Friendship{
			{UID: "confirmed", AreFriends: true, FriendID: "friend-1"},
			{UID: "incoming", AreFriends: false, FriendID: "friend-2", Inviter: "friend-2"},
			{UID: "outgoing", AreFriends: false, FriendID: "friend-3", Inviter: me},
			{UID: "unseen", AreFriends: true, FriendID: "friend-4", PendingViewAccepted: me},
		},
		LinkedUsers: []models.User{
			{UID: "friend-1", Email: "one@example.com"},
			{UID: "friend-4", Email: "four@example.com"},
		},
		ListInvites: []models.ListInvite{
			{UID: "inv-incoming", ListID: "shared-2", Inviter: other},
			{UID: "inv-outgoing", ListID: "owned", Inviter: me},
			{UID: "inv-accepted", ListID: "shared-3", PendingViewAccepted: me},
		},
		LinkedLists: []models.UserList{
			{UID: "shared-2", Name: "Weekend"},
		},
	}
}

func TestSnapshotFriendPartitions(t *testing.T) {
	s := relationshipSnapshot()

	friends := s.Friends()
	if len(friends) != 2 || friends[0].UID != "friend-1" || friends[1].UID != "friend-4" {
		t.Fatalf("unexpected friends: %+v", friends)
	}

	incoming := s.IncomingFriendRequests()
	if len(incoming) != 1 || incoming[0].UID != "incoming" {
		t.Fatalf("unexpected incoming requests: %+v", incoming)
	}

	outgoing := s.OutgoingFriendRequests()
	if len(outgoing) != 1 || outgoing[0].UID != "outgoing" {
		t.Fatalf("unexpected outgoing requests: %+v", outgoing)
	}
}

func TestSnapshotListPartitions(t *testing.T) {
	s := relationshipSnapshot()

	owned := s.OwnedLists()
	if len(owned) != 1 || owned[0].UID != "owned" {
		t.Fatalf("unexpected owned lists: %+v", owned)
	}

	shared := s.SharedLists()
	if len(shared) != 1 || shared[0].UID != "shared" {
		t.Fatalf("unexpected shared lists: %+v", shared)
	}

	invited := s.InvitedLists()
	if len(invited) != 1 || invited[0].Name != "Weekend" {
		t.Fatalf("unexpected invited lists: %+v", invited)
	}
}

func TestSnapshotPendingCounts(t *testing.T) {
	s := relationshipSnapshot()

	// One incoming invite, one incoming friend request, one unseen acceptance.
	if got := s.PendingNotificationCount(); got != 3 {
		t.Fatalf("expected pending count 3, got %d", got)
	}

	ids := s.PendingViewListIDs()
	if len(ids) != 1 || ids[0] != "shared-3" {
		t.Fatalf("unexpected pending view list ids: %+v", ids)
	}
}

func TestSnapshotEmptyIsZero(t *testing.T) {
	s := Snapshot{CurrentUserID: me}
	if s.PendingNotificationCount() != 0 {
		t.Fatalf("expected zero pending count")
	}
	if len(s.Friends()) != 0 || len(s.OwnedLists()) != 0 || len(s.IncomingInvites()) != 0 {
		t.Fatalf("expected empty partitions")
	}
}
