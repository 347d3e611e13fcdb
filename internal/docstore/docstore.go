// Package docstore is the seam between the repositories and the database.
//
// A Collection offers the five primitives every repository is built on:
// insert, find-one, find-many, find-one-and-update and find-one-and-delete.
// Documents cross the seam as BSON regardless of the backend, so the same
// struct tags drive MongoDB, SQLite and Postgres.
//
// Implementations live in subpackages:
//
//	docstore/mongo     — go.mongodb.org/mongo-driver
//	docstore/sqlite    — modernc.org/sqlite, JSON documents in one table per collection
//	docstore/postgres  — jackc/pgx, JSONB documents in one table per collection
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// IDField is the name of the identity field in every stored document.
const IDField = "_id"

// ErrNoDocument is returned by the single-document primitives when nothing
// matches the filter. Repositories translate it into an absent result.
var ErrNoDocument = errors.New("docstore: no document matches filter")

// Filter selects documents by equality on top-level fields.
// An empty (or nil) filter matches every document.
type Filter map[string]any

// ByID is shorthand for a filter on the identity field.
func ByID(id string) Filter {
	return Filter{IDField: id}
}

// Collection is the capability set a backend must provide for one named
// collection. Every method operates on the FIRST match where only one
// document is involved; "first" is the backend's natural order.
type Collection interface {
	Name() string
	// Insert stores doc under a freshly generated identity and returns the
	// stored document, identity included.
	Insert(ctx context.Context, doc bson.D) (bson.Raw, error)
	FindOne(ctx context.Context, filter Filter) (bson.Raw, error)
	FindMany(ctx context.Context, filter Filter) ([]bson.Raw, error)
	// FindOneAndUpdate merges set into the first match and returns the
	// document as it is after the update.
	FindOneAndUpdate(ctx context.Context, filter Filter, set bson.D) (bson.Raw, error)
	// FindOneAndDelete removes the first match and returns what was removed.
	FindOneAndDelete(ctx context.Context, filter Filter) (bson.Raw, error)
}

// Store hands out collections over one long-lived connection.
type Store interface {
	Collection(ctx context.Context, name string) (Collection, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateName rejects collection and field names that are not plain
// identifiers. SQL backends interpolate collection names into statements.
func ValidateName(name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("docstore: invalid name %q", name)
	}
	return nil
}

// ValidateFilter checks field names and that every value is a scalar the
// SQL backends know how to compare.
func ValidateFilter(filter Filter) error {
	for field, value := range filter {
		if err := ValidateName(field); err != nil {
			return err
		}
		switch value.(type) {
		case string, bool, int, int32, int64, float64:
		default:
			return fmt.Errorf("docstore: unsupported filter value %T for field %q", value, field)
		}
	}
	return nil
}

// SortedFields returns the filter's field names in a stable order so that
// generated SQL (and its placeholders) is deterministic.
func SortedFields(filter Filter) []string {
	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// WithID returns doc with its identity set to id. Any identity already present
// in doc is dropped.
func WithID(doc bson.D, id string) bson.D {
	out := make(bson.D, 0, len(doc)+1)
	out = append(out, bson.E{Key: IDField, Value: id})
	for _, e := range doc {
		if e.Key != IDField {
			out = append(out, e)
		}
	}
	return out
}

// WithoutID returns doc minus its identity field. Updates must never move a
// document to a different identity.
func WithoutID(doc bson.D) bson.D {
	out := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if e.Key != IDField {
			out = append(out, e)
		}
	}
	return out
}

// MarshalJSON encodes a document as relaxed Extended JSON, the format the
// SQL backends persist.
func MarshalJSON(doc bson.D) ([]byte, error) {
	b, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("docstore: encoding document: %w", err)
	}
	return b, nil
}

// UnmarshalJSON decodes a relaxed Extended JSON document back into BSON.
func UnmarshalJSON(data []byte) (bson.Raw, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("docstore: decoding document: %w", err)
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("docstore: re-encoding document: %w", err)
	}
	return raw, nil
}
