package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/educatorstribe/tribenews/internal/types"
)

// MongoStore writes articles to a MongoDB collection.
//
// Batches are applied write by write rather than in a transaction, since
// standalone servers do not support them. Every write is idempotent so a
// partial batch converges on the next run.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// OpenMongo connects to uri and ensures the collection's indexes.
func OpenMongo(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "connect", Err: err}
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Op: "ping", Err: err}
	}

	s := &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_storage"),
	}
	if _, err := s.Migrate(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

// Migrate creates the collection indexes.
func (s *MongoStore) Migrate(ctx context.Context) (string, error) {
	names, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "canonical_url", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "fetched_at", Value: -1}}},
		{Keys: bson.D{{Key: "domain", Value: 1}, {Key: "fetched_at", Value: -1}}},
	})
	if err != nil {
		return "", &types.StorageError{Backend: "mongodb", Op: "migrate", Err: err}
	}
	s.logger.Debug("indexes ready", "indexes", names)
	return fmt.Sprintf("mongodb indexes %v", names), nil
}

func (s *MongoStore) FindByURL(ctx context.Context, canonicalURL string) (*types.Article, error) {
	var a types.Article
	err := s.collection.FindOne(ctx, bson.M{"canonical_url": canonicalURL}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "find", Err: err}
	}
	return &a, nil
}

func (s *MongoStore) ApplyBatch(ctx context.Context, b *Batch) (*BatchResult, error) {
	now := b.Now
	if now.IsZero() {
		now = time.Now()
	}
	out := &BatchResult{}

	for _, a := range b.Inserts {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.FetchedAt.IsZero() {
			a.FetchedAt = now
		}
		a.FetchedAt = a.FetchedAt.UTC()
		if _, err := s.collection.InsertOne(ctx, a); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return nil, &types.StorageError{Backend: "mongodb", Op: "insert", Err: err}
		}
		out.Inserted++
	}

	for _, bf := range b.Backfills {
		res, err := s.collection.UpdateOne(ctx,
			bson.M{
				"canonical_url": bf.CanonicalURL,
				"$or": bson.A{
					bson.M{"image_url": bson.M{"$exists": false}},
					bson.M{"image_url": ""},
				},
			},
			bson.M{
				"$set": bson.M{"image_url": bf.ImageURL},
				"$max": bson.M{"fetched_at": now.UTC()},
			},
		)
		if err != nil {
			return nil, &types.StorageError{Backend: "mongodb", Op: "backfill", Err: err}
		}
		out.Backfilled += int(res.ModifiedCount)
	}

	if out.Inserted == 0 && b.TouchLimit > 0 && b.Domain != "" {
		minTitle := max(b.MinTitleLength, 1)
		recent, err := s.ListArticles(ctx, ListQuery{Limit: b.TouchLimit, Domain: b.Domain, MinTitleLength: minTitle})
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 {
			ids := make(bson.A, len(recent))
			for i, a := range recent {
				ids[i] = a.ID
			}
			res, err := s.collection.UpdateMany(ctx,
				bson.M{"_id": bson.M{"$in": ids}},
				bson.M{"$max": bson.M{"fetched_at": now.UTC()}},
			)
			if err != nil {
				return nil, &types.StorageError{Backend: "mongodb", Op: "touch", Err: err}
			}
			out.Touched = int(res.MatchedCount)
		}
	}

	s.logger.Debug("batch applied",
		"domain", b.Domain,
		"inserted", out.Inserted,
		"backfilled", out.Backfilled,
		"touched", out.Touched,
	)
	return out, nil
}

func (s *MongoStore) ListArticles(ctx context.Context, q ListQuery) ([]*types.Article, error) {
	opts := options.Find().SetSort(bson.D{{Key: "fetched_at", Value: -1}, {Key: "_id", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}

	cur, err := s.collection.Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "list", Err: err}
	}
	defer cur.Close(ctx)

	var out []*types.Article
	if err := cur.All(ctx, &out); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "list", Err: err}
	}
	return out, nil
}

func (s *MongoStore) CountArticles(ctx context.Context, q ListQuery) (int, error) {
	n, err := s.collection.CountDocuments(ctx, mongoFilter(q))
	if err != nil {
		return 0, &types.StorageError{Backend: "mongodb", Op: "count", Err: err}
	}
	return int(n), nil
}

func (s *MongoStore) Close() error {
	s.logger.Info("mongodb storage closing")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mongoFilter(q ListQuery) bson.M {
	filter := bson.M{"is_relevant": true}
	if q.MinTitleLength > 0 {
		filter["$expr"] = bson.M{
			"$gte": bson.A{bson.M{"$strLenCP": bson.M{"$trim": bson.M{"input": "$title"}}}, q.MinTitleLength},
		}
	}
	if q.RequireImage {
		filter["image_url"] = bson.M{"$nin": bson.A{nil, ""}}
	}
	if q.Domain != "" {
		filter["domain"] = q.Domain
	}
	return filter
}
