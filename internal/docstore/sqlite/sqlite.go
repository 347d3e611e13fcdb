// Package sqlite implements docstore.Store on an embedded SQLite database.
//
// Each collection is one table:
//
//	CREATE TABLE <name> (id TEXT PRIMARY KEY, doc TEXT NOT NULL, created_at DATETIME)
//
// The doc column holds the whole document as relaxed Extended JSON (see
// docstore.MarshalJSON), identity included. Filters on the identity hit the
// primary key; filters on any other field go through SQLite's json_extract.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so there is no C toolchain to
// install and ":memory:" databases make the repository tests self-contained.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/postboard/internal/docstore"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// compile-time checks
var (
	_ docstore.Store      = (*DB)(nil)
	_ docstore.Collection = (*Collection)(nil)
)

// DB wraps a sql.DB connection pool and hands out collections.
type DB struct {
	conn *sql.DB

	mu      sync.Mutex
	created map[string]bool // tables already migrated by this process
}

// New opens (or creates) the database at dbPath.
//
// dbPath examples:
//   - "data/postboard.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand new, empty database.
	// Pin the pool to a single connection so all queries see the same data.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent readers while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	return &DB{conn: conn, created: make(map[string]bool)}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection pool.
func (db *DB) Close(_ context.Context) error {
	return db.conn.Close()
}

// Collection returns the named collection, creating its table on first use.
func (db *DB) Collection(ctx context.Context, name string) (docstore.Collection, error) {
	if err := docstore.ValidateName(name); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.created[name] {
		if err := db.migrate(ctx, name); err != nil {
			return nil, fmt.Errorf("sqlite: creating collection %s: %w", name, err)
		}
		db.created[name] = true
	}

	return &Collection{conn: db.conn, name: name}, nil
}

// migrate creates the collection table. CREATE TABLE IF NOT EXISTS makes it
// safe to run on every start.
func (db *DB) migrate(ctx context.Context, name string) error {
	_, err := db.conn.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id         TEXT PRIMARY KEY,
			doc        TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s(created_at);
	`, name))
	return err
}

// Collection is one table of JSON documents.
type Collection struct {
	conn *sql.DB
	name string
}

func (c *Collection) Name() string { return c.name }

// Insert stores doc under a new xid identity.
func (c *Collection) Insert(ctx context.Context, doc bson.D) (bson.Raw, error) {
	id := xid.New().String()
	stored := docstore.WithID(doc, id)

	body, err := docstore.MarshalJSON(stored)
	if err != nil {
		return nil, err
	}

	_, err = c.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?)`, c.name),
		id, string(body),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting into %s: %w", c.name, err)
	}

	raw, err := bson.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encoding inserted document: %w", err)
	}
	return raw, nil
}

func (c *Collection) FindOne(ctx context.Context, filter docstore.Filter) (bson.Raw, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	var body string
	err = c.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY rowid LIMIT 1`, c.name, where),
		args...,
	).Scan(&body)
	return c.decodeRow(body, err, "finding in")
}

func (c *Collection) FindMany(ctx context.Context, filter docstore.Filter) ([]bson.Raw, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	rows, err := c.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY rowid`, c.name, where),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying %s: %w", c.name, err)
	}
	defer rows.Close()

	docs := make([]bson.Raw, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s row: %w", c.name, err)
		}
		raw, err := docstore.UnmarshalJSON([]byte(body))
		if err != nil {
			return nil, err
		}
		docs = append(docs, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s rows: %w", c.name, err)
	}

	return docs, nil
}

// FindOneAndUpdate merges set into the first match with json_patch in a
// single statement, so the read and the write cannot interleave.
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter docstore.Filter, set bson.D) (bson.Raw, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	patch, err := docstore.MarshalJSON(docstore.WithoutID(set))
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE %[1]s SET doc = json_patch(doc, ?)
		WHERE id = (SELECT id FROM %[1]s WHERE %[2]s ORDER BY rowid LIMIT 1)
		RETURNING doc`, c.name, where)

	var body string
	err = c.conn.QueryRowContext(ctx, query, append([]any{string(patch)}, args...)...).Scan(&body)
	return c.decodeRow(body, err, "updating")
}

func (c *Collection) FindOneAndDelete(ctx context.Context, filter docstore.Filter) (bson.Raw, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE id = (SELECT id FROM %[1]s WHERE %[2]s ORDER BY rowid LIMIT 1)
		RETURNING doc`, c.name, where)

	var body string
	err = c.conn.QueryRowContext(ctx, query, args...).Scan(&body)
	return c.decodeRow(body, err, "deleting from")
}

// decodeRow turns the result of a single-row query into a document,
// translating sql.ErrNoRows into docstore.ErrNoDocument.
func (c *Collection) decodeRow(body string, err error, action string) (bson.Raw, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNoDocument
		}
		return nil, fmt.Errorf("sqlite: %s %s: %w", action, c.name, err)
	}
	return docstore.UnmarshalJSON([]byte(body))
}

// whereClause builds a parameterised WHERE expression for filter.
// The JSON path is passed as a parameter too; field names are still
// validated so nothing but identifiers ever reaches the statement.
func whereClause(filter docstore.Filter) (string, []any, error) {
	if err := docstore.ValidateFilter(filter); err != nil {
		return "", nil, err
	}
	if len(filter) == 0 {
		return "1 = 1", nil, nil
	}

	conds := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter)*2)
	for _, field := range docstore.SortedFields(filter) {
		if field == docstore.IDField {
			conds = append(conds, "id = ?")
			args = append(args, filter[field])
			continue
		}
		conds = append(conds, "json_extract(doc, ?) = ?")
		args = append(args, "$."+field, filter[field])
	}
	return strings.Join(conds, " AND "), args, nil
}
