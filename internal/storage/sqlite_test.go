package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/educatorstribe/tribenews/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), testLogger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func article(n int, image string, fetched time.Time) *types.Article {
	return &types.Article{
		Title:        fmt.Sprintf("Lagos schools story number %d", n),
		CanonicalURL: fmt.Sprintf("https://news.example.com/story/%d", n),
		Domain:       "news.example.com",
		ImageURL:     image,
		Category:     "Education",
		Source:       "test",
		FetchedAt:    fetched,
		IsRelevant:   true,
	}
}

func TestSQLiteInsertAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	res, err := s.ApplyBatch(ctx, &Batch{
		Domain:  "news.example.com",
		Inserts: []*types.Article{article(1, "https://cdn.example.com/1.jpg", t0), article(2, "", t0)},
		Now:     t0,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Inserted != 2 || res.Touched != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	got, err := s.FindByURL(ctx, "https://news.example.com/story/1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID == "" || got.ImageURL != "https://cdn.example.com/1.jpg" || !got.FetchedAt.Equal(t0) {
		t.Errorf("unexpected article %+v", got)
	}

	if _, err := s.FindByURL(ctx, "https://news.example.com/missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteDuplicateInsertTouchesDomain(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	if _, err := s.ApplyBatch(ctx, &Batch{Domain: "news.example.com", Inserts: []*types.Article{article(1, "", t0)}, Now: t0}); err != nil {
		t.Fatal(err)
	}

	res, err := s.ApplyBatch(ctx, &Batch{
		Domain:     "news.example.com",
		Inserts:    []*types.Article{article(1, "", t1)},
		TouchLimit: 30,
		Now:        t1,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Inserted != 0 || res.Touched != 1 {
		t.Fatalf("expected duplicate skip and one touch, got %+v", res)
	}

	n, err := s.CountArticles(ctx, ListQuery{})
	if err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}
	got, _ := s.FindByURL(ctx, "https://news.example.com/story/1")
	if !got.FetchedAt.Equal(t1) {
		t.Errorf("fetched_at = %v, want %v", got.FetchedAt, t1)
	}
}

func TestSQLiteTouchNeverMovesBackwards(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if _, err := s.ApplyBatch(ctx, &Batch{Domain: "news.example.com", Inserts: []*types.Article{article(1, "", t0)}, Now: t0}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyBatch(ctx, &Batch{Domain: "news.example.com", TouchLimit: 30, Now: t0.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.FindByURL(ctx, "https://news.example.com/story/1")
	if !got.FetchedAt.Equal(t0) {
		t.Errorf("fetched_at moved backwards to %v", got.FetchedAt)
	}
}

func TestSQLiteTouchLimitAndDomain(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	var inserts []*types.Article
	for i := 0; i < 5; i++ {
		inserts = append(inserts, article(i, "", t0.Add(time.Duration(i)*time.Minute)))
	}
	other := article(99, "", t0)
	other.Domain = "other.example.com"
	other.CanonicalURL = "https://other.example.com/x"
	inserts = append(inserts, other)

	if _, err := s.ApplyBatch(ctx, &Batch{Inserts: inserts, Now: t0}); err != nil {
		t.Fatal(err)
	}

	later := t0.Add(2 * time.Hour)
	res, err := s.ApplyBatch(ctx, &Batch{Domain: "news.example.com", TouchLimit: 3, Now: later})
	if err != nil {
		t.Fatal(err)
	}
	if res.Touched != 3 {
		t.Fatalf("touched = %d, want 3", res.Touched)
	}

	for i, want := range []bool{false, false, true, true, true} {
		a, _ := s.FindByURL(ctx, fmt.Sprintf("https://news.example.com/story/%d", i))
		if got := a.FetchedAt.Equal(later); got != want {
			t.Errorf("story %d touched = %v, want %v", i, got, want)
		}
	}
	o, _ := s.FindByURL(ctx, "https://other.example.com/x")
	if o.FetchedAt.Equal(later) {
		t.Error("other domain must not be touched")
	}
}

func TestSQLiteBackfillOnlyFillsMissingImages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if _, err := s.ApplyBatch(ctx, &Batch{Inserts: []*types.Article{
		article(1, "", t0),
		article(2, "https://cdn.example.com/keep.jpg", t0),
	}, Now: t0}); err != nil {
		t.Fatal(err)
	}

	res, err := s.ApplyBatch(ctx, &Batch{Backfills: []Backfill{
		{CanonicalURL: "https://news.example.com/story/1", ImageURL: "https://cdn.example.com/new.jpg"},
		{CanonicalURL: "https://news.example.com/story/2", ImageURL: "https://cdn.example.com/other.jpg"},
	}, Now: t0.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Backfilled != 1 {
		t.Errorf("backfilled = %d, want 1", res.Backfilled)
	}

	a1, _ := s.FindByURL(ctx, "https://news.example.com/story/1")
	a2, _ := s.FindByURL(ctx, "https://news.example.com/story/2")
	if a1.ImageURL != "https://cdn.example.com/new.jpg" {
		t.Errorf("story 1 image = %q", a1.ImageURL)
	}
	if a2.ImageURL != "https://cdn.example.com/keep.jpg" {
		t.Errorf("story 2 image overwritten: %q", a2.ImageURL)
	}
	if !a1.FetchedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("backfill should advance fetched_at, got %v", a1.FetchedAt)
	}
	if !a2.FetchedAt.Equal(t0) {
		t.Errorf("untouched article fetched_at moved: %v", a2.FetchedAt)
	}
}

func TestSQLiteRejectsRelativeImage(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ApplyBatch(context.Background(), &Batch{Inserts: []*types.Article{article(1, "/img/x.jpg", time.Now())}})
	var se *types.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestSQLiteListArticles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	var inserts []*types.Article
	for i := 0; i < 6; i++ {
		img := ""
		if i%2 == 0 {
			img = fmt.Sprintf("https://cdn.example.com/%d.jpg", i)
		}
		inserts = append(inserts, article(i, img, t0.Add(time.Duration(i)*time.Minute)))
	}
	if _, err := s.ApplyBatch(ctx, &Batch{Inserts: inserts, Now: t0}); err != nil {
		t.Fatal(err)
	}

	page, err := s.ListArticles(ctx, ListQuery{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || !strings.HasSuffix(page[0].CanonicalURL, "/4") || !strings.HasSuffix(page[1].CanonicalURL, "/3") {
		t.Errorf("unexpected page order: %v", canonicalURLs(page))
	}

	withImages, err := s.ListArticles(ctx, ListQuery{RequireImage: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(withImages) != 3 {
		t.Errorf("expected 3 articles with images, got %d", len(withImages))
	}

	n, err := s.CountArticles(ctx, ListQuery{RequireImage: true})
	if err != nil || n != 3 {
		t.Errorf("count = %d, %v", n, err)
	}

	recent, err := s.ListArticles(ctx, ListQuery{Limit: 2, Domain: "news.example.com"})
	if err != nil || len(recent) != 2 || !strings.HasSuffix(recent[0].CanonicalURL, "/5") {
		t.Errorf("recent = %v, %v", canonicalURLs(recent), err)
	}
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	v, err := s.Migrate(context.Background())
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if !strings.Contains(v, "v1") {
		t.Errorf("version = %q", v)
	}
}

func TestExport(t *testing.T) {
	published := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	a := article(1, "https://cdn.example.com/1.jpg", published)
	a.ID = "abc"
	a.PublishedAt = &published

	var csvBuf bytes.Buffer
	if err := Export(&csvBuf, FormatCSV, []*types.Article{a}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "id,title,canonical_url") || !strings.HasPrefix(lines[1], "abc,") {
		t.Errorf("unexpected csv: %q", csvBuf.String())
	}

	var jsonl bytes.Buffer
	if err := Export(&jsonl, FormatJSONL, []*types.Article{a, a}); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(jsonl.String(), "\n"); n != 2 {
		t.Errorf("jsonl lines = %d", n)
	}

	if err := Export(&jsonl, "xml", nil); err == nil {
		t.Error("expected unsupported format error")
	}
}

func canonicalURLs(as []*types.Article) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.CanonicalURL
	}
	return out
}
