package store

import (
	"context"
	"sort"
	"sync"
)

type memDoc struct {
	value   []byte
	version uint64
}

type subscription struct {
	id     int
	prefix string
	fn     func(Change)
}

// Memory is an in-process Store. It backs tests and single-node deployments.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]memDoc
	subs   map[int]subscription
	nextID int
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]memDoc),
		subs: make(map[int]subscription),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Get(ctx context.Context, path string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[path]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Path: path, Value: clone(doc.value), Version: doc.version}, nil
}

func (m *Memory) Set(ctx context.Context, path string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	doc := m.docs[path]
	m.docs[path] = memDoc{value: clone(value), version: doc.version + 1}
	subs := m.matching(path)
	m.mu.Unlock()

	notify(subs, Change{Path: path, Value: clone(value)})
	return nil
}

func (m *Memory) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	var removed []string
	for p := range m.docs {
		if under(p, path) {
			delete(m.docs, p)
			removed = append(removed, p)
		}
	}
	sort.Strings(removed)
	changes := make([]Change, 0, len(removed))
	subsByChange := make([][]subscription, 0, len(removed))
	for _, p := range removed {
		changes = append(changes, Change{Path: p, Removed: true})
		subsByChange = append(subsByChange, m.matching(p))
	}
	m.mu.Unlock()

	for i, c := range changes {
		notify(subsByChange[i], c)
	}
	return nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for p, doc := range m.docs {
		if p != prefix && under(p, prefix) {
			out = append(out, Entry{Path: p, Value: clone(doc.value), Version: doc.version})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) CompareAndSwap(ctx context.Context, path string, expected uint64, value []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	doc, ok := m.docs[path]
	current := uint64(0)
	if ok {
		current = doc.version
	}
	if current != expected {
		m.mu.Unlock()
		return 0, ErrConflict
	}
	next := current + 1
	m.docs[path] = memDoc{value: clone(value), version: next}
	subs := m.matching(path)
	m.mu.Unlock()

	notify(subs, Change{Path: path, Value: clone(value)})
	return next, nil
}

// Subscribe registers fn for every write under prefix. Callbacks run
// synchronously on the writer's goroutine after the write is visible.
func (m *Memory) Subscribe(ctx context.Context, prefix string, fn func(Change)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs[id] = subscription{id: id, prefix: prefix, fn: fn}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}, nil
}

// matching must be called with m.mu held.
func (m *Memory) matching(path string) []subscription {
	var out []subscription
	for _, s := range m.subs {
		if under(path, s.prefix) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func notify(subs []subscription, c Change) {
	for _, s := range subs {
		s.fn(c)
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
