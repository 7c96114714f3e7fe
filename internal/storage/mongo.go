package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/beaconsearch/beacon/internal/filter"
)

// MongoConfig holds the connection settings of a MongoStore.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// MongoStore reads collections from a MongoDB database. Predicates are
// rendered with filter.ToBSON.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database is required")
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(cfg.Database)}, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Count(ctx context.Context, collection string, pred *filter.Filter) (int64, error) {
	if err := pred.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	n, err := s.db.Collection(collection).CountDocuments(ctx, pred.ToBSON())
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *MongoStore) Find(ctx context.Context, collection string, pred *filter.Filter, opts FindOptions) ([]filter.Document, error) {
	if err := pred.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}

	findOpts := options.Find()
	if opts.Skip > 0 {
		findOpts.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(projectionDoc(opts.Projection))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, pred.ToBSON(), findOpts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}

	docs := make([]filter.Document, len(raw))
	for i, m := range raw {
		docs[i] = normalizeDocument(m)
	}
	return docs, nil
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, pred *filter.Filter, projection []string) (filter.Document, error) {
	if err := pred.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}

	findOpts := options.FindOne()
	if len(projection) > 0 {
		findOpts.SetProjection(projectionDoc(projection))
	}

	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, pred.ToBSON(), findOpts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", collection, err)
	}
	return normalizeDocument(raw), nil
}

// projectionDoc builds an inclusion projection. _id is excluded unless it
// is requested explicitly, matching MemoryStore.
func projectionDoc(paths []string) bson.D {
	proj := make(bson.D, 0, len(paths)+1)
	withID := false
	for _, p := range paths {
		if p == filter.IDField {
			withID = true
		}
		proj = append(proj, bson.E{Key: p, Value: 1})
	}
	if !withID {
		proj = append(proj, bson.E{Key: filter.IDField, Value: 0})
	}
	return proj
}

// normalizeDocument converts driver types into plain maps and slices.
func normalizeDocument(m bson.M) filter.Document {
	doc := make(filter.Document, len(m))
	for k, v := range m {
		doc[k] = normalizeValue(v)
	}
	return doc
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalizeValue(child)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeValue(child)
		}
		return out
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Decimal128:
		return val.String()
	default:
		return v
	}
}
