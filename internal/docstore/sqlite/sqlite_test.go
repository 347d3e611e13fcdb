package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/postboard/internal/docstore"
)

// newTestCollection opens an in-memory database and returns one collection.
// t.Cleanup closes the database when the test (or subtest) finishes.
func newTestCollection(t *testing.T, name string) (*DB, docstore.Collection) {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(context.Background()) })

	coll, err := db.Collection(context.Background(), name)
	require.NoError(t, err)
	return db, coll
}

func insert(t *testing.T, c docstore.Collection, doc bson.D) bson.Raw {
	t.Helper()
	raw, err := c.Insert(context.Background(), doc)
	require.NoError(t, err)
	return raw
}

func idOf(t *testing.T, raw bson.Raw) string {
	t.Helper()
	id, ok := raw.Lookup(docstore.IDField).StringValueOK()
	require.True(t, ok, "document has no string _id")
	return id
}

func TestInsert_AssignsID(t *testing.T) {
	_, c := newTestCollection(t, "posts")

	raw := insert(t, c, bson.D{{Key: "title", Value: "T"}, {Key: "comments", Value: []string{}}})

	id := idOf(t, raw)
	assert.NotEmpty(t, id)
	assert.Equal(t, "T", raw.Lookup("title").StringValue())
}

func TestInsert_IgnoresCallerID(t *testing.T) {
	_, c := newTestCollection(t, "posts")

	raw := insert(t, c, bson.D{{Key: "_id", Value: "chosen-by-caller"}, {Key: "title", Value: "T"}})

	assert.NotEqual(t, "chosen-by-caller", idOf(t, raw))
}

func TestFindOne(t *testing.T) {
	_, c := newTestCollection(t, "users")
	created := insert(t, c, bson.D{{Key: "email", Value: "a@x.com"}, {Key: "userName", Value: "a"}})

	t.Run("by id", func(t *testing.T) {
		found, err := c.FindOne(context.Background(), docstore.ByID(idOf(t, created)))
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", found.Lookup("email").StringValue())
	})

	t.Run("by field", func(t *testing.T) {
		found, err := c.FindOne(context.Background(), docstore.Filter{"email": "a@x.com"})
		require.NoError(t, err)
		assert.Equal(t, idOf(t, created), idOf(t, found))
	})

	t.Run("by two fields", func(t *testing.T) {
		_, err := c.FindOne(context.Background(), docstore.Filter{"email": "a@x.com", "userName": "b"})
		assert.ErrorIs(t, err, docstore.ErrNoDocument)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := c.FindOne(context.Background(), docstore.ByID("nonexistent"))
		assert.True(t, errors.Is(err, docstore.ErrNoDocument))
	})
}

func TestFindOne_ReturnsFirstInInsertionOrder(t *testing.T) {
	_, c := newTestCollection(t, "users")
	first := insert(t, c, bson.D{{Key: "email", Value: "dup@x.com"}, {Key: "userName", Value: "first"}})
	insert(t, c, bson.D{{Key: "email", Value: "dup@x.com"}, {Key: "userName", Value: "second"}})

	found, err := c.FindOne(context.Background(), docstore.Filter{"email": "dup@x.com"})
	require.NoError(t, err)
	assert.Equal(t, idOf(t, first), idOf(t, found))
}

func TestFindMany(t *testing.T) {
	_, c := newTestCollection(t, "comments")
	insert(t, c, bson.D{{Key: "postId", Value: "p1"}, {Key: "comment", Value: "one"}})
	insert(t, c, bson.D{{Key: "postId", Value: "p2"}, {Key: "comment", Value: "two"}})
	insert(t, c, bson.D{{Key: "postId", Value: "p1"}, {Key: "comment", Value: "three"}})

	all, err := c.FindMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	p1, err := c.FindMany(context.Background(), docstore.Filter{"postId": "p1"})
	require.NoError(t, err)
	require.Len(t, p1, 2)
	assert.Equal(t, "one", p1[0].Lookup("comment").StringValue())
	assert.Equal(t, "three", p1[1].Lookup("comment").StringValue())

	none, err := c.FindMany(context.Background(), docstore.Filter{"postId": "nope"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFindOneAndUpdate(t *testing.T) {
	_, c := newTestCollection(t, "posts")
	created := insert(t, c, bson.D{
		{Key: "title", Value: "Old"},
		{Key: "content", Value: "C"},
		{Key: "comments", Value: []string{}},
	})
	id := idOf(t, created)

	updated, err := c.FindOneAndUpdate(context.Background(), docstore.ByID(id),
		bson.D{{Key: "title", Value: "New"}})
	require.NoError(t, err)

	// Merged: changed field updated, untouched fields kept, identity kept.
	assert.Equal(t, "New", updated.Lookup("title").StringValue())
	assert.Equal(t, "C", updated.Lookup("content").StringValue())
	assert.Equal(t, id, idOf(t, updated))

	// And persisted.
	found, err := c.FindOne(context.Background(), docstore.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, "New", found.Lookup("title").StringValue())
}

func TestFindOneAndUpdate_CannotChangeID(t *testing.T) {
	_, c := newTestCollection(t, "posts")
	id := idOf(t, insert(t, c, bson.D{{Key: "title", Value: "T"}}))

	updated, err := c.FindOneAndUpdate(context.Background(), docstore.ByID(id),
		bson.D{{Key: "_id", Value: "hijacked"}, {Key: "title", Value: "U"}})
	require.NoError(t, err)
	assert.Equal(t, id, idOf(t, updated))
}

func TestFindOneAndUpdate_NoMatch(t *testing.T) {
	_, c := newTestCollection(t, "posts")

	_, err := c.FindOneAndUpdate(context.Background(), docstore.ByID("nonexistent"),
		bson.D{{Key: "title", Value: "New"}})
	assert.ErrorIs(t, err, docstore.ErrNoDocument)
}

func TestFindOneAndDelete(t *testing.T) {
	_, c := newTestCollection(t, "comments")
	id := idOf(t, insert(t, c, bson.D{{Key: "postId", Value: "p1"}, {Key: "comment", Value: "bye"}}))
	insert(t, c, bson.D{{Key: "postId", Value: "p1"}, {Key: "comment", Value: "stay"}})

	removed, err := c.FindOneAndDelete(context.Background(), docstore.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, "bye", removed.Lookup("comment").StringValue())

	_, err = c.FindOne(context.Background(), docstore.ByID(id))
	assert.ErrorIs(t, err, docstore.ErrNoDocument)

	rest, err := c.FindMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	_, err = c.FindOneAndDelete(context.Background(), docstore.ByID(id))
	assert.ErrorIs(t, err, docstore.ErrNoDocument)
}

func TestCollection_RejectsBadNames(t *testing.T) {
	db, c := newTestCollection(t, "posts")

	_, err := db.Collection(context.Background(), "posts; DROP TABLE posts")
	assert.Error(t, err)

	_, err = c.FindMany(context.Background(), docstore.Filter{"title') OR 1=1 --": "x"})
	assert.Error(t, err)

	_, err = c.FindMany(context.Background(), docstore.Filter{"title": []string{"x"}})
	assert.Error(t, err)
}

func TestCollection_ReopenKeepsData(t *testing.T) {
	db, c := newTestCollection(t, "posts")
	insert(t, c, bson.D{{Key: "title", Value: "kept"}})

	again, err := db.Collection(context.Background(), "posts")
	require.NoError(t, err)

	docs, err := again.FindMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
