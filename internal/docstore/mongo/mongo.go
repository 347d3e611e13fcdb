// Package mongo implements docstore.Store on MongoDB using the official
// go.mongodb.org/mongo-driver.
//
// Identities are ObjectID hex strings stored as plain strings in _id, which
// keeps them interchangeable with the identities the SQL backends generate.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/postboard/internal/docstore"
)

var (
	_ docstore.Store      = (*Store)(nil)
	_ docstore.Collection = (*Collection)(nil)
)

// connectTimeout bounds the initial connect + ping.
const connectTimeout = 15 * time.Second

// Store owns a mongo.Client and one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, pings the server and selects database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if err := docstore.ValidateName(database); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo: disconnecting: %w", err)
	}
	return nil
}

// Collection returns the named collection. MongoDB creates it lazily on the
// first insert, so nothing is done up front.
func (s *Store) Collection(_ context.Context, name string) (docstore.Collection, error) {
	if err := docstore.ValidateName(name); err != nil {
		return nil, err
	}
	return &Collection{coll: s.db.Collection(name)}, nil
}

// Collection adapts *mongo.Collection to docstore.Collection.
type Collection struct {
	coll *mongo.Collection
}

func (c *Collection) Name() string { return c.coll.Name() }

func (c *Collection) Insert(ctx context.Context, doc bson.D) (bson.Raw, error) {
	stored := docstore.WithID(doc, primitive.NewObjectID().Hex())

	if _, err := c.coll.InsertOne(ctx, stored); err != nil {
		return nil, fmt.Errorf("mongo: inserting into %s: %w", c.Name(), err)
	}

	raw, err := bson.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("mongo: encoding inserted document: %w", err)
	}
	return raw, nil
}

func (c *Collection) FindOne(ctx context.Context, filter docstore.Filter) (bson.Raw, error) {
	f, err := toBSON(filter)
	if err != nil {
		return nil, err
	}
	return c.single(c.coll.FindOne(ctx, f), "finding in")
}

func (c *Collection) FindMany(ctx context.Context, filter docstore.Filter) ([]bson.Raw, error) {
	f, err := toBSON(filter)
	if err != nil {
		return nil, err
	}

	cursor, err := c.coll.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("mongo: querying %s: %w", c.Name(), err)
	}
	defer cursor.Close(ctx)

	docs := make([]bson.Raw, 0)
	for cursor.Next(ctx) {
		// cursor.Current is reused by the next call to Next; copy it.
		docs = append(docs, append(bson.Raw(nil), cursor.Current...))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterating %s: %w", c.Name(), err)
	}
	return docs, nil
}

func (c *Collection) FindOneAndUpdate(ctx context.Context, filter docstore.Filter, set bson.D) (bson.Raw, error) {
	f, err := toBSON(filter)
	if err != nil {
		return nil, err
	}

	set = docstore.WithoutID(set)
	if len(set) == 0 {
		// $set with an empty document is rejected by the server.
		return c.FindOne(ctx, filter)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.D{{Key: "$set", Value: set}}
	return c.single(c.coll.FindOneAndUpdate(ctx, f, update, opts), "updating")
}

func (c *Collection) FindOneAndDelete(ctx context.Context, filter docstore.Filter) (bson.Raw, error) {
	f, err := toBSON(filter)
	if err != nil {
		return nil, err
	}
	return c.single(c.coll.FindOneAndDelete(ctx, f), "deleting from")
}

func (c *Collection) single(res *mongo.SingleResult, action string) (bson.Raw, error) {
	raw, err := res.Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNoDocument
		}
		return nil, fmt.Errorf("mongo: %s %s: %w", action, c.Name(), err)
	}
	return raw, nil
}

// toBSON converts a docstore.Filter into a plain equality query document.
func toBSON(filter docstore.Filter) (bson.D, error) {
	if err := docstore.ValidateFilter(filter); err != nil {
		return nil, err
	}
	out := make(bson.D, 0, len(filter))
	for _, field := range docstore.SortedFields(filter) {
		out = append(out, bson.E{Key: field, Value: filter[field]})
	}
	return out, nil
}
