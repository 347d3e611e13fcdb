package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/postboard/internal/docstore"
)

// These tests need a running MongoDB. They are skipped unless
// MONGODB_TEST_URI is set, e.g. MONGODB_TEST_URI=mongodb://127.0.0.1:27017
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	// A throwaway database per test keeps runs independent.
	dbName := "postboard_test_" + xid.New().String()
	s, err := Connect(context.Background(), uri, dbName)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestToBSON_SortsFields(t *testing.T) {
	d, err := toBSON(docstore.Filter{"userName": "a", "email": "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "email", Value: "a@x.com"}, {Key: "userName", Value: "a"}}, d)
}

func TestToBSON_RejectsOperators(t *testing.T) {
	_, err := toBSON(docstore.Filter{"$where": "1"})
	assert.Error(t, err)

	_, err = toBSON(docstore.Filter{"email": bson.M{"$ne": ""}})
	assert.Error(t, err)
}

func TestCollection_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.Collection(ctx, "posts")
	require.NoError(t, err)

	created, err := c.Insert(ctx, bson.D{{Key: "title", Value: "T"}, {Key: "comments", Value: []string{}}})
	require.NoError(t, err)
	id := created.Lookup("_id").StringValue()
	require.NotEmpty(t, id)

	found, err := c.FindOne(ctx, docstore.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, "T", found.Lookup("title").StringValue())

	updated, err := c.FindOneAndUpdate(ctx, docstore.ByID(id), bson.D{{Key: "title", Value: "U"}})
	require.NoError(t, err)
	assert.Equal(t, "U", updated.Lookup("title").StringValue())

	many, err := c.FindMany(ctx, docstore.Filter{"title": "U"})
	require.NoError(t, err)
	assert.Len(t, many, 1)

	removed, err := c.FindOneAndDelete(ctx, docstore.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, id, removed.Lookup("_id").StringValue())

	_, err = c.FindOne(ctx, docstore.ByID(id))
	assert.ErrorIs(t, err, docstore.ErrNoDocument)
}
