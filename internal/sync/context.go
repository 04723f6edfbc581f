// Package sync owns the live view of the signed-in user's data: three
// uid-filtered subscriptions (lists, invites, friendships) plus an optional
// activity-log subscription scoped to the current list. Consumers read
// immutable snapshots and may register a change hook.
package sync

import (
	"context"
	"sort"
	gosync "sync"

	"go.uber.org/zap"

	"github.com/tandemlist/tandem/internal/derive"
	"github.com/tandemlist/tandem/internal/models"
	"github.com/tandemlist/tandem/internal/store"
)

// Context is a lifecycle-scoped service object: constructed for one
// authenticated uid, started once, closed on sign-out. Closing guarantees no
// further state changes or hook invocations.
type Context struct {
	remote store.RemoteStore
	userID string
	log    *zap.Logger

	mu      gosync.Mutex
	started bool
	closed  bool
	subs    []store.Subscription

	userLists   []models.UserList
	listInvites []models.ListInvite
	linkedLists []models.UserList
	friendships []models.Friendship
	linkedUsers []models.User
	activityLog []models.ActivityLog
	currentList *models.UserList

	// activityGen tags the activity-log subscription; deliveries carrying a
	// superseded generation are discarded, so switching lists never applies an
	// in-flight event from the previous list.
	activityGen uint64
	activitySub store.Subscription

	ctx      context.Context
	onChange func(Snapshot)
}

func NewContext(remote store.RemoteStore, userID string, log *zap.Logger) *Context {
	return &Context{
		remote:      remote,
		userID:      userID,
		log:         log,
		userLists:   []models.UserList{},
		listInvites: []models.ListInvite{},
		linkedLists: []models.UserList{},
		friendships: []models.Friendship{},
		linkedUsers: []models.User{},
		activityLog: []models.ActivityLog{},
	}
}

func (c *Context) UserID() string {
	return c.userID
}

// OnChange registers the hook invoked with a fresh snapshot after every state
// change. Must be set before Start; the hook runs without internal locks held
// and may call back into the context.
func (c *Context) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Start opens the three membership-filtered subscriptions. Each fires once
// with current state before Start returns.
func (c *Context) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.ctx = ctx
	c.mu.Unlock()

	memberFilter := store.Filter{Field: "users/" + c.userID, Value: true}

	listsSub, err := c.remote.Subscribe(ctx, store.CollectionUserLists, memberFilter, c.applyUserLists)
	if err != nil {
		return err
	}
	invitesSub, err := c.remote.Subscribe(ctx, store.CollectionListInvites, memberFilter, c.applyListInvites)
	if err != nil {
		listsSub.Close()
		return err
	}
	friendsSub, err := c.remote.Subscribe(ctx, store.CollectionFriendships, memberFilter, c.applyFriendships)
	if err != nil {
		listsSub.Close()
		invitesSub.Close()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		listsSub.Close()
		invitesSub.Close()
		friendsSub.Close()
		return nil
	}
	c.subs = append(c.subs, listsSub, invitesSub, friendsSub)
	c.mu.Unlock()
	return nil
}

// SetCurrentList selects the list whose activity log is streamed, or clears
// the selection when list is nil. The previous activity-log subscription is
// torn down; its in-flight events are never applied.
func (c *Context) SetCurrentList(ctx context.Context, list *models.UserList) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.activityGen++
	gen := c.activityGen
	old := c.activitySub
	c.activitySub = nil
	c.activityLog = []models.ActivityLog{}
	if list == nil {
		c.currentList = nil
	} else {
		selected := *list
		c.currentList = &selected
	}
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if list == nil {
		c.publish()
		return nil
	}

	sub, err := c.remote.Subscribe(ctx, store.CollectionActivityLog,
		store.Filter{Field: "listId", Value: list.UID},
		func(records map[string]store.Record) {
			c.applyActivityLog(gen, records)
		})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed || gen != c.activityGen {
		c.mu.Unlock()
		sub.Close()
		return nil
	}
	c.activitySub = sub
	c.mu.Unlock()
	return nil
}

// Close tears down every subscription. No state change or hook invocation
// happens after Close returns.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	if c.activitySub != nil {
		subs = append(subs, c.activitySub)
		c.activitySub = nil
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (c *Context) applyUserLists(records map[string]store.Record) {
	lists := make([]models.UserList, 0, len(records))
	for uid, raw := range records {
		list, err := models.DecodeUserList(uid, raw)
		if err != nil {
			c.log.Warn("skipping malformed list", zap.String("uid", uid), zap.Error(err))
			continue
		}
		lists = append(lists, list)
	}
	lists = derive.SortLists(lists)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.userLists = lists
	c.mu.Unlock()
	c.publish()
}

// applyListInvites resolves the lists referenced by incoming invites before
// publishing, so a snapshot never carries an invite whose linked list is
// missing.
func (c *Context) applyListInvites(records map[string]store.Record) {
	invites := make([]models.ListInvite, 0, len(records))
	for uid, raw := range records {
		invite, err := models.DecodeListInvite(uid, raw)
		if err != nil {
			c.log.Warn("skipping malformed invite", zap.String("uid", uid), zap.Error(err))
			continue
		}
		invites = append(invites, invite)
	}
	sort.Slice(invites, func(i, j int) bool { return invites[i].UID < invites[j].UID })

	linked, err := c.fetchLinkedLists(invites)
	if err != nil {
		// Frozen last-known state; no automatic retry.
		c.log.Warn("resolving invited lists", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.listInvites = invites
	c.linkedLists = linked
	c.mu.Unlock()
	c.publish()
}

func (c *Context) fetchLinkedLists(invites []models.ListInvite) ([]models.UserList, error) {
	seen := map[string]bool{}
	lists := []models.UserList{}
	for _, invite := range invites {
		if invite.Inviter == "" || invite.Inviter == c.userID {
			continue
		}
		if seen[invite.ListID] {
			continue
		}
		seen[invite.ListID] = true

		value, err := c.remote.ReadOnce(c.ctx, store.CollectionUserLists+"/"+invite.ListID)
		if err != nil {
			return nil, err
		}
		raw, ok := value.(map[string]any)
		if !ok {
			// List deleted between invite and fetch; the invite is dropped by
			// the join, not an error.
			continue
		}
		list, err := models.DecodeUserList(invite.ListID, raw)
		if err != nil {
			c.log.Warn("skipping malformed linked list", zap.String("uid", invite.ListID), zap.Error(err))
			continue
		}
		lists = append(lists, list)
	}
	return derive.SortLists(lists), nil
}

func (c *Context) applyFriendships(records map[string]store.Record) {
	friendships := make([]models.Friendship, 0, len(records))
	for uid, raw := range records {
		friendship, err := models.DecodeFriendship(uid, c.userID, raw)
		if err != nil {
			c.log.Warn("skipping malformed friendship", zap.String("uid", uid), zap.Error(err))
			continue
		}
		friendships = append(friendships, friendship)
	}
	sort.Slice(friendships, func(i, j int) bool { return friendships[i].UID < friendships[j].UID })

	linked, err := c.fetchLinkedUsers(friendships)
	if err != nil {
		c.log.Warn("resolving friend profiles", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.friendships = friendships
	c.linkedUsers = linked
	c.mu.Unlock()
	c.publish()
}

func (c *Context) fetchLinkedUsers(friendships []models.Friendship) ([]models.User, error) {
	seen := map[string]bool{}
	users := []models.User{}
	for _, friendship := range friendships {
		if friendship.FriendID == "" || seen[friendship.FriendID] {
			continue
		}
		seen[friendship.FriendID] = true

		value, err := c.remote.ReadOnce(c.ctx, store.CollectionUsers+"/"+friendship.FriendID)
		if err != nil {
			return nil, err
		}
		raw, ok := value.(map[string]any)
		if !ok {
			continue
		}
		user, err := models.DecodeUser(friendship.FriendID, raw)
		if err != nil {
			c.log.Warn("skipping malformed user", zap.String("uid", friendship.FriendID), zap.Error(err))
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (c *Context) applyActivityLog(gen uint64, records map[string]store.Record) {
	logs := make([]models.ActivityLog, 0, len(records))
	for uid, raw := range records {
		entry, err := models.DecodeActivityLog(uid, raw)
		if err != nil {
			c.log.Warn("skipping malformed activity entry", zap.String("uid", uid), zap.Error(err))
			continue
		}
		logs = append(logs, entry)
	}
	logs = derive.SortActivityLogs(logs)

	c.mu.Lock()
	if c.closed || gen != c.activityGen {
		// Stale delivery from a superseded subscription.
		c.mu.Unlock()
		return
	}
	c.activityLog = logs
	c.mu.Unlock()
	c.publish()
}

func (c *Context) publish() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn := c.onChange
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// Snapshot returns a copy of the current state. The returned slices are not
// shared with the context and stay valid after further updates.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Context) snapshotLocked() Snapshot {
	s := Snapshot{
		CurrentUserID: c.userID,
		UserLists:     append([]models.UserList{}, c.userLists...),
		ListInvites:   append([]models.ListInvite{}, c.listInvites...),
		LinkedLists:   append([]models.UserList{}, c.linkedLists...),
		Friendships:   append([]models.Friendship{}, c.friendships...),
		LinkedUsers:   append([]models.User{}, c.linkedUsers...),
		ActivityLog:   append([]models.ActivityLog{}, c.activityLog...),
	}
	if c.currentList != nil {
		selected := *c.currentList
		s.CurrentList = &selected
	}
	return s
}
