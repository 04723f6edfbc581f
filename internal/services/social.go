package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tandemlist/tandem/internal/derive"
	"github.com/tandemlist/tandem/internal/models"
	"github.com/tandemlist/tandem/internal/store"
)

// SendFriendRequest creates a pending friendship with the current user as
// inviter and notifies the target.
func (s *DataService) SendFriendRequest(ctx context.Context, userID string) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	uid := s.remote.Push(store.CollectionFriendships)
	record := map[string]any{
		"areFriends": false,
		"inviter":    user.UID,
		"users":      map[string]any{user.UID: true, userID: true},
	}
	if err := s.remote.Write(ctx, store.CollectionFriendships+"/"+uid, record); err != nil {
		return fmt.Errorf("sending friend request: %w", err)
	}

	s.notify(ctx, []string{userID},
		"New friend request!",
		fmt.Sprintf("%s sent you a friend request", user.Email))
	return nil
}

// AcceptFriendRequest confirms a pending friendship: the inviter is cleared
// and the pending-view marker is set to userID so the acceptance banner can
// be acknowledged later.
func (s *DataService) AcceptFriendRequest(ctx context.Context, friendshipID, userID string) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	fields := map[string]any{
		"areFriends":          true,
		"pendingViewAccepted": userID,
		"inviter":             nil,
	}
	if err := s.remote.Update(ctx, store.CollectionFriendships+"/"+friendshipID, fields); err != nil {
		return fmt.Errorf("accepting friend request: %w", err)
	}

	friendship, err := s.fetchFriendship(ctx, friendshipID, user.UID)
	if err != nil {
		s.log.Warn("resolving accepted friendship", zap.Error(err))
	} else if friendship != nil && friendship.FriendID != "" {
		s.notify(ctx, []string{friendship.FriendID},
			"Accepted your friend request!",
			fmt.Sprintf("%s accepted your friend request", user.Email))
	}
	return nil
}

// RemoveFriend deletes the friendship, every invite naming the departing
// friend, and the current user's membership in lists that friend owns. The
// three fan-outs run sequentially with no atomicity across them.
func (s *DataService) RemoveFriend(ctx context.Context, friendshipID string, userLists []models.UserList, friendships []models.Friendship, listInvites []models.ListInvite) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	friendID := ""
	for _, friendship := range friendships {
		if friendship.UID == friendshipID {
			friendID = friendship.FriendID
			break
		}
	}
	if friendID == "" {
		return ErrFriendshipNotFound
	}

	if err := s.remote.Remove(ctx, store.CollectionFriendships+"/"+friendshipID); err != nil {
		return fmt.Errorf("removing friendship: %w", err)
	}

	for _, invite := range listInvites {
		if !containsMember(invite.Users, friendID) {
			continue
		}
		if err := s.remote.Remove(ctx, store.CollectionListInvites+"/"+invite.UID); err != nil {
			return fmt.Errorf("removing invite %s: %w", invite.UID, err)
		}
	}

	for _, list := range userLists {
		if list.Owner != friendID {
			continue
		}
		path := store.CollectionUserLists + "/" + list.UID + "/users/" + user.UID
		if err := s.remote.Remove(ctx, path); err != nil {
			return fmt.Errorf("leaving list %s: %w", list.UID, err)
		}
	}
	return nil
}

// InviteCollaboratorToList offers list membership to a friend.
func (s *DataService) InviteCollaboratorToList(ctx context.Context, list models.UserList, friendID string) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	uid := s.remote.Push(store.CollectionListInvites)
	record := map[string]any{
		"listId":  list.UID,
		"inviter": user.UID,
		"users":   map[string]any{user.UID: true, friendID: true},
	}
	if err := s.remote.Write(ctx, store.CollectionListInvites+"/"+uid, record); err != nil {
		return fmt.Errorf("inviting collaborator: %w", err)
	}

	s.logActivity(ctx, list.UID, models.ActionInvitedCollaborator,
		s.subjectForUser(ctx, friendID), "", user.UID)

	s.notify(ctx, []string{friendID},
		"You have been invited!",
		fmt.Sprintf("%s invited you to the '%s' list", user.Email, list.Name))
	return nil
}

// RemoveCollaboratorFromList drops a member. Leaving voluntarily and being
// removed by the owner record different actions.
func (s *DataService) RemoveCollaboratorFromList(ctx context.Context, list models.UserList, member models.User) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	path := store.CollectionUserLists + "/" + list.UID + "/users/" + member.UID
	if err := s.remote.Remove(ctx, path); err != nil {
		return fmt.Errorf("removing collaborator: %w", err)
	}

	if member.UID == user.UID {
		s.logActivity(ctx, list.UID, models.ActionCollaboratorLeft, member.Email, "", user.UID)
		s.notify(ctx, []string{list.Owner},
			"Removed from list",
			fmt.Sprintf("%s left the '%s' list", user.Email, list.Name))
	} else {
		s.logActivity(ctx, list.UID, models.ActionRemovedCollaborator, member.Email, "", user.UID)
		s.notify(ctx, []string{member.UID},
			"Removed from list",
			fmt.Sprintf("%s removed you from the '%s' list", user.Email, list.Name))
	}
	return nil
}

// AcceptListInvite joins the list, then marks the invite accepted with the
// pending-view banner aimed at the list owner.
func (s *DataService) AcceptListInvite(ctx context.Context, invite models.ListInvite, list models.UserList) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	memberPath := store.CollectionUserLists + "/" + list.UID + "/users/" + user.UID
	if err := s.remote.Write(ctx, memberPath, true); err != nil {
		return fmt.Errorf("joining list: %w", err)
	}

	fields := map[string]any{
		"inviter":             nil,
		"pendingViewAccepted": list.Owner,
	}
	if err := s.remote.Update(ctx, store.CollectionListInvites+"/"+invite.UID, fields); err != nil {
		return fmt.Errorf("accepting invite: %w", err)
	}

	s.logActivity(ctx, list.UID, models.ActionCollaboratorAccepted, user.Email, "", user.UID)

	s.notify(ctx, []string{list.Owner},
		"New list member!",
		fmt.Sprintf("%s joined the '%s' list", user.Email, list.Name))
	return nil
}

// DeclineListInvite deletes the pending invite and tells the inviter.
func (s *DataService) DeclineListInvite(ctx context.Context, invite models.ListInvite) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	if err := s.remote.Remove(ctx, store.CollectionListInvites+"/"+invite.UID); err != nil {
		return fmt.Errorf("declining invite: %w", err)
	}

	s.logActivity(ctx, invite.ListID, models.ActionCollaboratorDeclined, user.Email, "", user.UID)

	if invite.Inviter != "" {
		s.notify(ctx, []string{invite.Inviter},
			"List invite declined",
			fmt.Sprintf("%s declined your list invite", user.Email))
	}
	return nil
}

// CancelListInvite withdraws an invite the current user sent. No
// notification; the invited party never saw it resolve.
func (s *DataService) CancelListInvite(ctx context.Context, invite models.ListInvite) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	if err := s.remote.Remove(ctx, store.CollectionListInvites+"/"+invite.UID); err != nil {
		return fmt.Errorf("canceling invite: %w", err)
	}

	invited := ""
	for _, member := range invite.Users {
		if member != user.UID {
			invited = member
			break
		}
	}
	s.logActivity(ctx, invite.ListID, models.ActionCancelCollaboratorInvite,
		s.subjectForUser(ctx, invited), "", user.UID)
	return nil
}

// SearchUserByEmail looks up a user by exact, case-normalized email. The
// current user never matches themselves; no match returns nil.
func (s *DataService) SearchUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := s.session.CurrentUser()
	if user == nil {
		return nil, ErrNotSignedIn
	}
	if !derive.ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}

	records, err := s.remote.QueryOnce(ctx, store.CollectionUsers,
		store.Filter{Field: "email", Value: strings.ToLower(email)})
	if err != nil {
		return nil, fmt.Errorf("searching user: %w", err)
	}

	for uid, raw := range records {
		if uid == user.UID {
			return nil, nil
		}
		match, err := models.DecodeUser(uid, raw)
		if err != nil {
			return nil, err
		}
		return &match, nil
	}
	return nil, nil
}

// DeleteFriendshipPendingViews clears the pending-view marker on confirmed
// friendships the current user has now seen. Fire and forget; callers ignore
// the error once the relevant screen is mounted.
func (s *DataService) DeleteFriendshipPendingViews(ctx context.Context, friendships []models.Friendship) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	for _, friendship := range friendships {
		if !friendship.AreFriends || friendship.PendingViewAccepted != user.UID {
			continue
		}
		path := store.CollectionFriendships + "/" + friendship.UID + "/pendingViewAccepted"
		if err := s.remote.Remove(ctx, path); err != nil {
			return fmt.Errorf("clearing pending view: %w", err)
		}
	}
	return nil
}

// DeleteListInvitePendingViews removes accepted-but-unseen invite records for
// one list once the current user has viewed it.
func (s *DataService) DeleteListInvitePendingViews(ctx context.Context, listID string, invites []models.ListInvite) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	for _, invite := range invites {
		if invite.ListID != listID || invite.PendingViewAccepted != user.UID {
			continue
		}
		if err := s.remote.Remove(ctx, store.CollectionListInvites+"/"+invite.UID); err != nil {
			return fmt.Errorf("removing viewed invite: %w", err)
		}
	}
	return nil
}

func (s *DataService) fetchFriendship(ctx context.Context, friendshipID, viewerID string) (*models.Friendship, error) {
	value, err := s.remote.ReadOnce(ctx, store.CollectionFriendships+"/"+friendshipID)
	if err != nil {
		return nil, fmt.Errorf("reading friendship: %w", err)
	}
	raw, ok := value.(map[string]any)
	if !ok {
		return nil, nil
	}
	friendship, err := models.DecodeFriendship(friendshipID, viewerID, raw)
	if err != nil {
		return nil, err
	}
	return &friendship, nil
}

// subjectForUser resolves a uid to an email for activity subjects, falling
// back to the uid when the profile cannot be read.
func (s *DataService) subjectForUser(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	user, err := s.fetchUser(ctx, userID)
	if err != nil || user == nil {
		return userID
	}
	return user.Email
}

func containsMember(members []string, userID string) bool {
	for _, member := range members {
		if member == userID {
			return true
		}
	}
	return false
}
