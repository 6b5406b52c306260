package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/educatorstribe/tribenews/internal/auth"
	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/ingest"
	"github.com/educatorstribe/tribenews/internal/observability"
	"github.com/educatorstribe/tribenews/internal/realtime"
	"github.com/educatorstribe/tribenews/internal/storage"
	"github.com/educatorstribe/tribenews/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	adminKey  = "admin-secret"
	memberKey = "member-secret"
)

type fakeIngester struct {
	calls atomic.Int32
	err   error
	last  *ingest.RunResult
}

func (f *fakeIngester) Run(ctx context.Context, trigger string) (*ingest.RunResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.last = &ingest.RunResult{ID: "run-1", Trigger: trigger, Added: 3}
	return f.last, nil
}

func (f *fakeIngester) LastRun() *ingest.RunResult { return f.last }

func (f *fakeIngester) State() ingest.State { return ingest.StateIdle }

type testEnv struct {
	srv      *Server
	store    *storage.SQLiteStore
	ingester *fakeIngester
	hub      *realtime.Hub
	metrics  *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Server.APIKeys = []config.APIKeyConfig{
		{Key: adminKey, Role: "admin"},
		{Key: memberKey, Role: "member"},
	}
	keyring, err := auth.NewKeyring(cfg.Server.APIKeys)
	if err != nil {
		t.Fatal(err)
	}

	store, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "api.db"), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store:    store,
		ingester: &fakeIngester{},
		hub:      realtime.NewHub(8, testLogger),
		metrics:  observability.NewMetrics(testLogger),
	}
	env.srv = NewServer(Deps{
		Config:   cfg,
		Store:    store,
		Ingester: env.ingester,
		Keyring:  keyring,
		Hub:      env.hub,
		Metrics:  env.metrics,
		Logger:   testLogger,
	})
	return env
}

func (e *testEnv) seed(t *testing.T, n int, withImage func(i int) bool) {
	t.Helper()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	batch := &storage.Batch{Now: base}
	for i := 0; i < n; i++ {
		a := &types.Article{
			ID:           fmt.Sprintf("id-%02d", i),
			Title:        fmt.Sprintf("Ghana schools reopen, report %02d", i),
			CanonicalURL: fmt.Sprintf("https://example.com/news/%02d", i),
			Domain:       "example.com",
			Category:     "Education",
			Source:       "desk",
			FetchedAt:    base.Add(time.Duration(i) * time.Minute),
			IsRelevant:   true,
		}
		if withImage(i) {
			a.ImageURL = fmt.Sprintf("https://cdn.example.com/%02d.jpg", i)
		}
		batch.Inserts = append(batch.Inserts, a)
	}
	if _, err := e.store.ApplyBatch(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) do(method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "ok" || body["version"] != config.Version {
		t.Errorf("unexpected body %v", body)
	}
}

func TestListArticlesPaginates(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 25, func(i int) bool { return i%2 == 0 })

	w := env.do(http.MethodGet, "/api/articles?page=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	articles := body["articles"].([]any)
	if len(articles) != 5 {
		t.Errorf("page 2 has %d articles, want 5", len(articles))
	}
	if body["total"].(float64) != 25 || body["pages"].(float64) != 2 {
		t.Errorf("unexpected paging %v/%v", body["total"], body["pages"])
	}

	w = env.do(http.MethodGet, "/api/articles?limit=3&require_image=true", "")
	body = decode(t, w)
	articles = body["articles"].([]any)
	if len(articles) != 3 {
		t.Fatalf("got %d articles, want 3", len(articles))
	}
	first := articles[0].(map[string]any)
	if first["canonical_url"] != "https://example.com/news/24" {
		t.Errorf("newest first expected, got %v", first["canonical_url"])
	}
	for _, a := range articles {
		if a.(map[string]any)["image_url"] == nil {
			t.Errorf("article without image returned: %v", a)
		}
	}
}

func TestListArticlesRejectsBadParams(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{
		"/api/articles?page=0",
		"/api/articles?page=abc",
		"/api/articles?limit=-1",
		"/api/articles?require_image=maybe",
	} {
		if w := env.do(http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestLatestArticles(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 30, func(i int) bool { return i < 25 })

	body := decode(t, env.do(http.MethodGet, "/api/articles/latest", ""))
	articles := body["articles"].([]any)
	if len(articles) != 10 {
		t.Fatalf("got %d articles, want 10", len(articles))
	}
	if got := articles[0].(map[string]any)["canonical_url"]; got != "https://example.com/news/24" {
		t.Errorf("latest with image should be 24, got %v", got)
	}
}

func TestAuthRoles(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"anonymous listing", http.MethodGet, "/api/articles", "", http.StatusOK},
		{"unknown key", http.MethodGet, "/api/articles", "nope", http.StatusUnauthorized},
		{"anonymous admin", http.MethodPost, "/api/admin/ingest", "", http.StatusUnauthorized},
		{"member admin", http.MethodPost, "/api/admin/ingest", memberKey, http.StatusForbidden},
		{"admin ingest", http.MethodPost, "/api/admin/ingest", adminKey, http.StatusOK},
		{"anonymous events", http.MethodGet, "/api/events", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(tt.method, tt.path, tt.key); w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/runs/last", nil)
	req.Header.Set("Authorization", "Bearer "+adminKey)
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before any run", w.Code)
	}
}

func TestAdminIngest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/admin/ingest", adminKey)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true || body["articles_added"].(float64) != 3 || body["run_id"] != "run-1" {
		t.Errorf("unexpected body %v", body)
	}

	w = env.do(http.MethodGet, "/api/admin/runs/last", adminKey)
	if w.Code != http.StatusOK {
		t.Fatalf("last run status = %d", w.Code)
	}
	if got := decode(t, w)["trigger"]; got != ingest.TriggerAdmin {
		t.Errorf("trigger = %v", got)
	}
}

func TestAdminIngestConflict(t *testing.T) {
	env := newTestEnv(t)
	env.ingester.err = types.ErrRunInProgress

	w := env.do(http.MethodPost, "/api/admin/ingest", adminKey)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	body := decode(t, w)
	if body["success"] != false || body["error"] != "ingestion already running" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.metrics.RunsTotal.Add(2)

	w := env.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tribenews_runs_total 2") {
		t.Errorf("metrics missing runs counter:\n%s", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodOptions, "/api/articles", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	req.Header.Set("X-API-Key", memberKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(prefix string) string {
		t.Helper()
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, lines.Err())
		return ""
	}

	waitFor("event:session")
	if env.hub.Len() != 1 || env.metrics.SessionsActive.Load() != 1 {
		t.Fatalf("session not registered: hub=%d gauge=%d", env.hub.Len(), env.metrics.SessionsActive.Load())
	}

	env.hub.Publish(realtime.EventIngestStarted, map[string]string{"run_id": "run-9"})
	waitFor("event:" + realtime.EventIngestStarted)
	data := waitFor("data:")
	if !strings.Contains(data, "run-9") {
		t.Errorf("event data = %q", data)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if env.hub.Len() != 0 {
		t.Error("session should be removed after the client disconnects")
	}
}
