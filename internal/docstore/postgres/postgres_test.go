package postgres

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

func TestWhereClause(t *testing.T) {
	tests := []struct {
		name     string
		filter   docstore.Filter
		first    int
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "empty filter matches everything",
			filter:  nil,
			first:   1,
			wantSQL: "TRUE",
		},
		{
			name:     "identity uses the primary key",
			filter:   docstore.ByID("abc"),
			first:    1,
			wantSQL:  "id = $1",
			wantArgs: []any{"abc"},
		},
		{
			name:     "fields are sorted and numbered from first",
			filter:   docstore.Filter{"userName": "a", "email": "a@x.com"},
			first:    2,
			wantSQL:  "doc->>($2::text) = $3 AND doc->>($4::text) = $5",
			wantArgs: []any{"email", "a@x.com", "userName", "a"},
		},
		{
			name:     "non-string values compare as text",
			filter:   docstore.Filter{"count": 3},
			first:    1,
			wantSQL:  "doc->>($1::text) = $2",
			wantArgs: []any{"count", "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := whereClause(tt.filter, tt.first)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestWhereClause_RejectsBadField(t *testing.T) {
	_, _, err := whereClause(docstore.Filter{"a; DROP": "x"}, 1)
	assert.Error(t, err)
}

// Live tests need a database. Skipped unless POSTGRES_TEST_DSN is set.
func TestCollection_Lifecycle(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()

	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(ctx) })

	name := "posts_" + xid.New().String()
	c, err := s.Collection(ctx, name)
	require.NoError(t, err)
	t.Cleanup(func() { s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+name) })

	created, err := c.Insert(ctx, bson.D{{Key: "title", Value: "T"}, {Key: "comments", Value: []string{}}})
	require.NoError(t, err)
	id := created.Lookup("_id").StringValue()

	updated, err := c.FindOneAndUpdate(ctx, docstore.ByID(id), bson.D{{Key: "title", Value: "U"}})
	require.NoError(t, err)
	assert.Equal(t, "U", updated.Lookup("title").StringValue())

	many, err := c.FindMany(ctx, docstore.Filter{"title": "U"})
	require.NoError(t, err)
	assert.Len(t, many, 1)

	_, err = c.FindOneAndDelete(ctx, docstore.ByID(id))
	require.NoError(t, err)

	_, err = c.FindOne(ctx, docstore.ByID(id))
	assert.ErrorIs(t, err, docstore.ErrNoDocument)
}
