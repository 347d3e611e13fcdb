// Package postgres implements docstore.Store on PostgreSQL through a pgx
// connection pool. Each collection is a table with a JSONB doc column:
//
//	CREATE TABLE <name> (id TEXT PRIMARY KEY, doc JSONB NOT NULL, created_at TIMESTAMPTZ, seq BIGSERIAL)
//
// seq gives a stable insertion order for "first match" semantics.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/postboard/internal/docstore"
)

var (
	_ docstore.Store      = (*Store)(nil)
	_ docstore.Collection = (*Collection)(nil)
)

type Store struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	created map[string]bool
}

// New opens a pool for dsn and verifies it with a ping.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging: %w", err)
	}
	return &Store{pool: pool, created: make(map[string]bool)}, nil
}

// Pool exposes the underlying pool, for metrics.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) Collection(ctx context.Context, name string) (docstore.Collection, error) {
	if err := docstore.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created[name] {
		_, err := s.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
  id         TEXT PRIMARY KEY,
  doc        JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  seq        BIGSERIAL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_doc_gin ON %[1]s USING GIN (doc);
`, name))
		if err != nil {
			return nil, fmt.Errorf("postgres: creating collection %s: %w", name, err)
		}
		s.created[name] = true
	}

	return &Collection{pool: s.pool, name: name}, nil
}

type Collection struct {
	pool *pgxpool.Pool
	name string
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Insert(ctx context.Context, doc bson.D) (bson.Raw, error) {
	id := xid.New().String()
	stored := docstore.WithID(doc, id)

	body, err := docstore.MarshalJSON(stored)
	if err != nil {
		return nil, err
	}

	_, err = c.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, c.name),
		id, string(body))
	if err != nil {
		return nil, fmt.Errorf("postgres: inserting into %s: %w", c.name, err)
	}

	raw, err := bson.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("postgres: encoding inserted document: %w", err)
	}
	return raw, nil
}

func (c *Collection) FindOne(ctx context.Context, filter docstore.Filter) (bson.Raw, error) {
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return nil, err
	}

	var body []byte
	err = c.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY seq LIMIT 1`, c.name, where),
		args...).Scan(&body)
	return c.decodeRow(body, err, "finding in")
}

func (c *Collection) FindMany(ctx context.Context, filter docstore.Filter) ([]bson.Raw, error) {
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY seq`, c.name, where),
		args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: querying %s: %w", c.name, err)
	}
	defer rows.Close()

	docs := make([]bson.Raw, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("postgres: scanning %s row: %w", c.name, err)
		}
		raw, err := docstore.UnmarshalJSON(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating %s rows: %w", c.name, err)
	}
	return docs, nil
}

// FindOneAndUpdate merges set into the first match with the JSONB || operator.
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter docstore.Filter, set bson.D) (bson.Raw, error) {
	patch, err := docstore.MarshalJSON(docstore.WithoutID(set))
	if err != nil {
		return nil, err
	}

	// $1 is the patch; filter placeholders start at $2.
	where, args, err := whereClause(filter, 2)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
UPDATE %[1]s SET doc = doc || $1::jsonb
WHERE id = (SELECT id FROM %[1]s WHERE %[2]s ORDER BY seq LIMIT 1)
RETURNING doc`, c.name, where)

	var body []byte
	err = c.pool.QueryRow(ctx, query, append([]any{string(patch)}, args...)...).Scan(&body)
	return c.decodeRow(body, err, "updating")
}

func (c *Collection) FindOneAndDelete(ctx context.Context, filter docstore.Filter) (bson.Raw, error) {
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
DELETE FROM %[1]s
WHERE id = (SELECT id FROM %[1]s WHERE %[2]s ORDER BY seq LIMIT 1)
RETURNING doc`, c.name, where)

	var body []byte
	err = c.pool.QueryRow(ctx, query, args...).Scan(&body)
	return c.decodeRow(body, err, "deleting from")
}

func (c *Collection) decodeRow(body []byte, err error, action string) (bson.Raw, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, docstore.ErrNoDocument
		}
		return nil, fmt.Errorf("postgres: %s %s: %w", action, c.name, err)
	}
	return docstore.UnmarshalJSON(body)
}

// whereClause builds the WHERE expression with numbered placeholders starting
// at first. doc->>key yields text, so every value is compared as text.
func whereClause(filter docstore.Filter, first int) (string, []any, error) {
	if err := docstore.ValidateFilter(filter); err != nil {
		return "", nil, err
	}
	if len(filter) == 0 {
		return "TRUE", nil, nil
	}

	n := first
	conds := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter)*2)
	for _, field := range docstore.SortedFields(filter) {
		if field == docstore.IDField {
			conds = append(conds, fmt.Sprintf("id = $%d", n))
			args = append(args, fmt.Sprint(filter[field]))
			n++
			continue
		}
		conds = append(conds, fmt.Sprintf("doc->>($%d::text) = $%d", n, n+1))
		args = append(args, field, fmt.Sprint(filter[field]))
		n += 2
	}
	return strings.Join(conds, " AND "), args, nil
}
