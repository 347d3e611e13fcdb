// Package repository provides a generic, type-safe CRUD layer over a
// docstore.Collection. One Repository[T] serves users, posts and comments
// alike; the entity type only has to carry bson tags with an "_id" field.
//
// Absence is not an error here: FindOne, Update and Remove return (nil, nil)
// when no document matches. Services decide whether absence means 404.
package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/postboard/internal/docstore"
)

// Filter selects documents by equality on stored field names.
type Filter = docstore.Filter

// ByID is shorthand for a filter on the identity field.
func ByID(id string) Filter { return docstore.ByID(id) }

// Patch is a partial update: stored field name -> new value. The identity
// field is ignored.
type Patch map[string]any

type Repository[T any] interface {
	Create(ctx context.Context, entity *T) (*T, error)
	FindMany(ctx context.Context, filter Filter) ([]T, error)
	FindOne(ctx context.Context, filter Filter) (*T, error)
	Update(ctx context.Context, filter Filter, patch Patch) (*T, error)
	Remove(ctx context.Context, filter Filter) (*T, error)
}

var _ Repository[struct{}] = (*DocRepository[struct{}])(nil)

// DocRepository implements Repository[T] on one collection.
type DocRepository[T any] struct {
	coll docstore.Collection
}

func New[T any](coll docstore.Collection) *DocRepository[T] {
	return &DocRepository[T]{coll: coll}
}

// Create stores entity under a fresh identity and returns the stored copy.
// Any identity already set on entity is discarded by the store.
func (r *DocRepository[T]) Create(ctx context.Context, entity *T) (*T, error) {
	doc, err := toDoc(entity)
	if err != nil {
		return nil, fmt.Errorf("repository: create in %s: %w", r.coll.Name(), err)
	}

	raw, err := r.coll.Insert(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("repository: create in %s: %w", r.coll.Name(), err)
	}
	return r.decode(raw)
}

// FindMany returns every match in the store's natural order. The result is
// never nil.
func (r *DocRepository[T]) FindMany(ctx context.Context, filter Filter) ([]T, error) {
	raws, err := r.coll.FindMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("repository: find in %s: %w", r.coll.Name(), err)
	}

	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var entity T
		if err := bson.Unmarshal(raw, &entity); err != nil {
			return nil, fmt.Errorf("repository: decoding %s document: %w", r.coll.Name(), err)
		}
		out = append(out, entity)
	}
	return out, nil
}

func (r *DocRepository[T]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	raw, err := r.coll.FindOne(ctx, filter)
	return r.single(raw, err, "find one in")
}

// Update merges patch into the first match and returns the updated entity.
// An empty patch (or one that only names the identity) changes nothing and
// returns the current document.
func (r *DocRepository[T]) Update(ctx context.Context, filter Filter, patch Patch) (*T, error) {
	set := patchDoc(patch)
	if len(set) == 0 {
		return r.FindOne(ctx, filter)
	}

	raw, err := r.coll.FindOneAndUpdate(ctx, filter, set)
	return r.single(raw, err, "update in")
}

// Remove deletes the first match and returns it.
func (r *DocRepository[T]) Remove(ctx context.Context, filter Filter) (*T, error) {
	raw, err := r.coll.FindOneAndDelete(ctx, filter)
	return r.single(raw, err, "remove from")
}

func (r *DocRepository[T]) single(raw bson.Raw, err error, action string) (*T, error) {
	if err != nil {
		if errors.Is(err, docstore.ErrNoDocument) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: %s %s: %w", action, r.coll.Name(), err)
	}
	return r.decode(raw)
}

func (r *DocRepository[T]) decode(raw bson.Raw) (*T, error) {
	entity := new(T)
	if err := bson.Unmarshal(raw, entity); err != nil {
		return nil, fmt.Errorf("repository: decoding %s document: %w", r.coll.Name(), err)
	}
	return entity, nil
}

func toDoc(entity any) (bson.D, error) {
	raw, err := bson.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encoding entity: %w", err)
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encoding entity: %w", err)
	}
	return docstore.WithoutID(doc), nil
}

// patchDoc orders the patch by field name so every backend sees the same
// update, and drops the identity.
func patchDoc(patch Patch) bson.D {
	set := make(bson.D, 0, len(patch))
	for _, field := range docstore.SortedFields(docstore.Filter(patch)) {
		if field == docstore.IDField {
			continue
		}
		set = append(set, bson.E{Key: field, Value: patch[field]})
	}
	return set
}
