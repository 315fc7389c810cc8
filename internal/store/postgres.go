package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const notifyChannel = "documents"

type documentRow struct {
	Path    string `db:"path"`
	Value   string `db:"value"`
	Version uint64 `db:"version"`
}

type notification struct {
	Path    string `json:"path"`
	Removed bool   `json:"removed"`
}

// Postgres is a Store over a single documents table. Subscriptions are fed by
// LISTEN/NOTIFY so every replica sees writes made by the others.
type Postgres struct {
	db  *sqlx.DB
	dsn string

	mu       sync.Mutex
	listener *pq.Listener
	subs     map[int]subscription
	nextID   int
}

// NewPostgres wraps an open connection. dsn is used to open the dedicated
// listener connection on first Subscribe.
func NewPostgres(db *sqlx.DB, dsn string) *Postgres {
	return &Postgres{db: db, dsn: dsn, subs: make(map[int]subscription)}
}

var _ Store = (*Postgres)(nil)

func (p *Postgres) Get(ctx context.Context, path string) (Entry, error) {
	var row documentRow
	err := p.db.GetContext(ctx, &row, `SELECT path, value::text AS value, version FROM documents WHERE path=$1`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return row.entry(), nil
}

func (p *Postgres) Set(ctx context.Context, path string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO documents (path, value, version) VALUES ($1, $2::jsonb, 1)
        ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, version = documents.version + 1, updated_at = NOW()`, path, string(value))
	if err != nil {
		return err
	}
	p.publish(ctx, notification{Path: path})
	return nil
}

func (p *Postgres) Remove(ctx context.Context, path string) error {
	var removed []string
	err := p.db.SelectContext(ctx, &removed, `DELETE FROM documents
        WHERE path=$1 OR left(path, length($1) + 1) = $1 || '/'
        RETURNING path`, path)
	if err != nil {
		return err
	}
	sort.Strings(removed)
	for _, r := range removed {
		p.publish(ctx, notification{Path: r, Removed: true})
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, prefix string) ([]Entry, error) {
	var rows []documentRow
	var err error
	if prefix == "" {
		err = p.db.SelectContext(ctx, &rows, `SELECT path, value::text AS value, version FROM documents ORDER BY path`)
	} else {
		err = p.db.SelectContext(ctx, &rows, `SELECT path, value::text AS value, version FROM documents
            WHERE left(path, length($1) + 1) = $1 || '/' ORDER BY path`, prefix)
	}
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

func (p *Postgres) CompareAndSwap(ctx context.Context, path string, expected uint64, value []byte) (uint64, error) {
	var version uint64
	var err error
	if expected == 0 {
		err = p.db.GetContext(ctx, &version, `INSERT INTO documents (path, value, version) VALUES ($1, $2::jsonb, 1)
            ON CONFLICT (path) DO NOTHING RETURNING version`, path, string(value))
	} else {
		err = p.db.GetContext(ctx, &version, `UPDATE documents SET value = $2::jsonb, version = version + 1, updated_at = NOW()
            WHERE path=$1 AND version=$3 RETURNING version`, path, string(value), expected)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, err
	}
	p.publish(ctx, notification{Path: path})
	return version, nil
}

func (p *Postgres) Subscribe(ctx context.Context, prefix string, fn func(Change)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listener == nil {
		listener := pq.NewListener(p.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Printf("store listener event=%d error: %v", ev, err)
			}
		})
		if err := listener.Listen(notifyChannel); err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
		}
		p.listener = listener
		go p.dispatch(listener)
	}

	p.nextID++
	id := p.nextID
	p.subs[id] = subscription{id: id, prefix: prefix, fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}, nil
}

// Close stops the listener connection if one was opened.
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	err := p.listener.Close()
	p.listener = nil
	return err
}

func (p *Postgres) publish(ctx context.Context, n notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
		log.Printf("store notify failed path=%s: %v", n.Path, err)
	}
}

func (p *Postgres) dispatch(listener *pq.Listener) {
	for n := range listener.Notify {
		// nil is sent after the listener reconnects.
		if n == nil {
			continue
		}
		var msg notification
		if err := json.Unmarshal([]byte(n.Extra), &msg); err != nil {
			log.Printf("store notify decode failed: %v", err)
			continue
		}

		p.mu.Lock()
		var subs []subscription
		for _, s := range p.subs {
			if under(msg.Path, s.prefix) {
				subs = append(subs, s)
			}
		}
		p.mu.Unlock()
		if len(subs) == 0 {
			continue
		}
		sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

		change := Change{Path: msg.Path, Removed: msg.Removed}
		if !msg.Removed {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			entry, err := p.Get(ctx, msg.Path)
			cancel()
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					log.Printf("store notify fetch failed path=%s: %v", msg.Path, err)
				}
				continue
			}
			change.Value = entry.Value
		}
		notify(subs, change)
	}
}

func (r documentRow) entry() Entry {
	return Entry{Path: r.Path, Value: []byte(r.Value), Version: r.Version}
}
