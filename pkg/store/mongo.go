package store

import (
	"context"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/observability"
)

const backendMongo = "mongo"

// MongoOptions configures a [MongoStore].
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	// TTL makes MongoDB expire documents this long after their last Put.
	// Zero keeps them.
	TTL time.Duration
}

// MongoStore keeps each document as one BSON document keyed by _id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	ttl    time.Duration
}

type mongoDocument struct {
	Document  `bson:",inline"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

// NewMongoStore connects to MongoDB, checks the connection and, with a TTL,
// ensures the expiry index.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "connect to mongo")
	}
	ping := func() error { return markRetryable(client.Ping(ctx, nil)) }
	if err := retryWithBackoff(ctx, ping); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "ping mongo")
	}
	s := &MongoStore{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
		ttl:    opts.TTL,
	}
	if opts.TTL > 0 {
		index := mongo.IndexModel{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		}
		if _, err := s.coll.Indexes().CreateOne(ctx, index); err != nil {
			_ = client.Disconnect(ctx)
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "create expiry index")
		}
	}
	return s, nil
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, key string) (*Document, error) {
	if err := errors.ValidateKey(key); err != nil {
		return nil, err
	}
	var md mongoDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&md)
	if err == mongo.ErrNoDocuments {
		observability.Store().OnStoreMiss(ctx, backendMongo)
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "mongo find %q", key)
	}
	// The expiry monitor runs about once a minute.
	if md.ExpiresAt != nil && time.Now().After(*md.ExpiresAt) {
		observability.Store().OnStoreMiss(ctx, backendMongo)
		return nil, notFound(key)
	}
	observability.Store().OnStoreHit(ctx, backendMongo)
	return &md.Document, nil
}

// Put implements Store.
func (s *MongoStore) Put(ctx context.Context, doc *Document) error {
	if err := checkDocument(doc); err != nil {
		return err
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	md := mongoDocument{Document: *doc}
	if s.ttl > 0 {
		expires := doc.UpdatedAt.Add(s.ttl)
		md.ExpiresAt = &expires
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.Key}, md, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "mongo replace %q", doc.Key)
	}
	observability.Store().OnStorePut(ctx, backendMongo, len(doc.Payload))
	return nil
}

// Delete implements Store.
func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if err := errors.ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "mongo delete %q", key)
	}
	return nil
}

// List implements Store.
func (s *MongoStore) List(ctx context.Context) ([]string, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "mongo find")
	}
	defer cur.Close(ctx)

	var keys []string
	for cur.Next(ctx) {
		var row struct {
			Key string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCodec, err, "mongo decode")
		}
		keys = append(keys, row.Key)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "mongo cursor")
	}
	slices.Sort(keys)
	return keys, nil
}

// Close implements Store.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
