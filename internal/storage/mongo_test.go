package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/educatorstribe/tribenews/internal/types"
)

// Set TRIBENEWS_TEST_MONGO_URI to run against a live server.
func openTestMongo(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("TRIBENEWS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TRIBENEWS_TEST_MONGO_URI not set")
	}
	coll := "articles_" + uuid.NewString()[:8]
	s, err := OpenMongo(context.Background(), uri, "tribenews_test", coll, testLogger)
	if err != nil {
		t.Fatalf("open mongo: %v", err)
	}
	t.Cleanup(func() {
		_ = s.collection.Drop(context.Background())
		_ = s.Close()
	})
	return s
}

func TestMongoBatchSemantics(t *testing.T) {
	s := openTestMongo(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	res, err := s.ApplyBatch(ctx, &Batch{Domain: "news.example.com", Inserts: []*types.Article{article(1, "", t0)}, Now: t0})
	if err != nil || res.Inserted != 1 {
		t.Fatalf("first batch: %+v, %v", res, err)
	}

	res, err = s.ApplyBatch(ctx, &Batch{
		Domain:     "news.example.com",
		Inserts:    []*types.Article{article(1, "", t1)},
		Backfills:  []Backfill{{CanonicalURL: "https://news.example.com/story/1", ImageURL: "https://cdn.example.com/1.jpg"}},
		TouchLimit: 30,
		Now:        t1,
	})
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if res.Inserted != 0 || res.Backfilled != 1 || res.Touched != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	got, err := s.FindByURL(ctx, "https://news.example.com/story/1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ImageURL != "https://cdn.example.com/1.jpg" || !got.FetchedAt.Equal(t1) {
		t.Errorf("unexpected article %+v", got)
	}

	if _, err := s.ApplyBatch(ctx, &Batch{Domain: "news.example.com", TouchLimit: 30, Now: t0}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.FindByURL(ctx, "https://news.example.com/story/1")
	if !got.FetchedAt.Equal(t1) {
		t.Errorf("fetched_at moved backwards to %v", got.FetchedAt)
	}

	n, err := s.CountArticles(ctx, ListQuery{RequireImage: true})
	if err != nil || n != 1 {
		t.Errorf("count = %d, %v", n, err)
	}
}
