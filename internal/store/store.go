package store

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document version conflict")
)

// Entry is a document read from the store together with its version.
type Entry struct {
	Path    string
	Value   []byte
	Version uint64
}

// Change describes a write observed by a subscriber.
type Change struct {
	Path    string
	Value   []byte
	Removed bool
}

// Store is a hierarchical document store addressed by slash-separated paths.
//
// Versions start at 1 for a newly created document and grow by one per write.
// CompareAndSwap with expected version 0 creates the document only if absent.
type Store interface {
	Get(ctx context.Context, path string) (Entry, error)
	Set(ctx context.Context, path string, value []byte) error
	Remove(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]Entry, error)
	CompareAndSwap(ctx context.Context, path string, expected uint64, value []byte) (uint64, error)
	Subscribe(ctx context.Context, prefix string, fn func(Change)) (func(), error)
}

// Join builds a store path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// under reports whether path equals prefix or lies in its subtree.
func under(path, prefix string) bool {
	if prefix == "" || path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
