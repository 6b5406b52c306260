package observability

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics(testLogger)
	m.RunsTotal.Add(2)
	m.ArticlesAdded.Add(7)
	m.Drop("topic:excluded")
	m.Drop("topic:excluded")
	m.Drop("url:non-article")

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		"tribenews_runs_total 2",
		"tribenews_articles_added_total 7",
		"# TYPE tribenews_sessions_active gauge",
		`tribenews_candidates_dropped_total{reason="topic:excluded"} 2`,
		`tribenews_candidates_dropped_total{reason="url:non-article"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(testLogger)
	m.SourcesSkipped.Add(1)
	m.Drop("title:too-short")

	snap := m.Snapshot()
	if snap["sources_skipped"] != 1 || snap["dropped:title:too-short"] != 1 {
		t.Errorf("unexpected snapshot %v", snap)
	}
}
