// Package store defines the remote realtime store the rest of the module
// depends on: five logical collections (userLists, listInvites, friendships,
// users, listActivityLog), each a mapping from generated uid to a loosely
// typed record. Backends live in subpackages; consumers program against
// RemoteStore only.
package store

import (
	"context"
	"fmt"
)

// Collection paths used by the product.
const (
	CollectionUserLists   = "userLists"
	CollectionListInvites = "listInvites"
	CollectionFriendships = "friendships"
	CollectionUsers       = "users"
	CollectionActivityLog = "listActivityLog"
)

// Record is one raw collection entry as the backend delivers it.
type Record = map[string]any

// Handler receives the full filtered state of a collection: uid to raw
// record. Each delivery replaces the previous one wholesale.
type Handler func(records map[string]Record)

// Subscription is a live handle on a filtered collection. Close stops
// deliveries; backends guarantee the handler is not invoked after Close
// returns.
type Subscription interface {
	Close()
}

// Filter matches records whose value at Field equals Value. Field is a
// slash-separated path within the record, so nested membership maps are
// addressable ("users/<uid>" == true).
type Filter struct {
	Field string
	Value any
}

// RemoteStore is the external-collaborator boundary. All operations may fail
// with a *RemoteError; callers decide whether to surface or retry.
type RemoteStore interface {
	// Subscribe opens a live subscription over a filtered collection. The
	// handler fires once with current state and again after every matching
	// change until the subscription is closed.
	Subscribe(ctx context.Context, collection string, filter Filter, handler Handler) (Subscription, error)

	// ReadOnce resolves a slash-separated path ("users/u1/pushToken") to its
	// current value, or nil when absent.
	ReadOnce(ctx context.Context, path string) (any, error)

	// QueryOnce returns the records of a collection matching the filter.
	QueryOnce(ctx context.Context, collection string, filter Filter) (map[string]Record, error)

	// Write sets the value at path, replacing whatever was there. Writing nil
	// removes the path.
	Write(ctx context.Context, path string, value any) error

	// Update merges fields into the record (or nested map) at path. A nil
	// field value removes that key.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Remove deletes the value at path.
	Remove(ctx context.Context, path string) error

	// Push returns a fresh server-unique child key for the parent path
	// (a collection or a nested sub-map inside a record). The path is a
	// hint only; the child does not exist until written.
	Push(parent string) string
}

// RemoteError wraps a backend failure (network, permission, serialization).
type RemoteError struct {
	Op   string
	Path string
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError builds a *RemoteError; backends use it so callers can match
// with errors.As.
func NewRemoteError(op, path string, err error) error {
	return &RemoteError{Op: op, Path: path, Err: err}
}
