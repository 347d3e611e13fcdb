package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/postboard/internal/repository"
)

// fakeRepo is an in-memory repository.Repository[T]. Entities are kept as
// their BSON documents so filters and patches address the same stored field
// names the real backends use.
type fakeRepo[T any] struct {
	mu     sync.Mutex
	docs   []bson.M
	nextID int

	// err, when set, is returned by every call.
	err error
}

var _ repository.Repository[struct{}] = (*fakeRepo[struct{}])(nil)

func newFakeRepo[T any]() *fakeRepo[T] {
	return &fakeRepo[T]{}
}

func (f *fakeRepo[T]) Create(_ context.Context, entity *T) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	doc, err := toM(entity)
	if err != nil {
		return nil, err
	}
	f.nextID++
	doc["_id"] = fmt.Sprintf("fake-%d", f.nextID)
	f.docs = append(f.docs, doc)
	return fromM[T](doc)
}

func (f *fakeRepo[T]) FindMany(_ context.Context, filter repository.Filter) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	out := make([]T, 0)
	for _, doc := range f.docs {
		if matches(doc, filter) {
			e, err := fromM[T](doc)
			if err != nil {
				return nil, err
			}
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeRepo[T]) FindOne(_ context.Context, filter repository.Filter) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	if i := f.first(filter); i >= 0 {
		return fromM[T](f.docs[i])
	}
	return nil, nil
}

func (f *fakeRepo[T]) Update(_ context.Context, filter repository.Filter, patch repository.Patch) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	i := f.first(filter)
	if i < 0 {
		return nil, nil
	}
	for k, v := range patch {
		if k != "_id" {
			f.docs[i][k] = v
		}
	}
	return fromM[T](f.docs[i])
}

func (f *fakeRepo[T]) Remove(_ context.Context, filter repository.Filter) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	i := f.first(filter)
	if i < 0 {
		return nil, nil
	}
	doc := f.docs[i]
	f.docs = append(f.docs[:i], f.docs[i+1:]...)
	return fromM[T](doc)
}

// raw returns the stored document with this id, or nil.
func (f *fakeRepo[T]) raw(id string) bson.M {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.first(repository.ByID(id)); i >= 0 {
		return f.docs[i]
	}
	return nil
}

func (f *fakeRepo[T]) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func (f *fakeRepo[T]) first(filter repository.Filter) int {
	for i, doc := range f.docs {
		if matches(doc, filter) {
			return i
		}
	}
	return -1
}

func matches(doc bson.M, filter repository.Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func toM(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromM[T any](m bson.M) (*T, error) {
	raw, err := bson.Marshal(m)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := bson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
