package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// maxUpdateAttempts bounds the CAS retry loop in Update.
const maxUpdateAttempts = 32

// ErrAbort can be returned by an update function to stop without writing.
// Update then returns the current value and a nil error.
var ErrAbort = errors.New("update aborted")

// GetJSON reads and decodes the document at path.
func GetJSON[T any](ctx context.Context, s Store, path string) (T, uint64, error) {
	var out T
	entry, err := s.Get(ctx, path)
	if err != nil {
		return out, 0, err
	}
	if err := json.Unmarshal(entry.Value, &out); err != nil {
		return out, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, entry.Version, nil
}

// SetJSON encodes v and overwrites the document at path.
func SetJSON(ctx context.Context, s Store, path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return s.Set(ctx, path, body)
}

// CreateJSON writes v at path only if nothing is stored there yet.
// It returns ErrConflict when the path is taken.
func CreateJSON(ctx context.Context, s Store, path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	_, err = s.CompareAndSwap(ctx, path, 0, body)
	return err
}

// ListJSON decodes every document under prefix.
func ListJSON[T any](ctx context.Context, s Store, prefix string) ([]T, error) {
	entries, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Path, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Update performs an atomic read-modify-write of the document at path.
//
// fn receives the current value and whether it exists, and returns the value
// to store. Returning an error leaves the document untouched and the error is
// passed back to the caller. fn may run several times when writers race, so
// it must not have side effects.
func Update[T any](ctx context.Context, s Store, path string, fn func(cur T, exists bool) (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		cur, version, err := GetJSON[T](ctx, s, path)
		exists := true
		if errors.Is(err, ErrNotFound) {
			exists = false
			version = 0
		} else if err != nil {
			return zero, err
		}

		next, err := fn(cur, exists)
		if errors.Is(err, ErrAbort) {
			return cur, nil
		}
		if err != nil {
			return zero, err
		}

		body, err := json.Marshal(next)
		if err != nil {
			return zero, fmt.Errorf("encode %s: %w", path, err)
		}
		if _, err := s.CompareAndSwap(ctx, path, version, body); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return zero, err
		}
		return next, nil
	}
	return zero, fmt.Errorf("update %s: %w", path, ErrConflict)
}
