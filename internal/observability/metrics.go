package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

// Metrics tracks operational counters for ingestion and the API.
type Metrics struct {
	// Run metrics
	RunsTotal    atomic.Int64
	RunsRejected atomic.Int64
	RunsFailed   atomic.Int64

	// Source metrics
	SourcesFetched atomic.Int64
	SourcesSkipped atomic.Int64

	// Fetch metrics
	FetchesTotal    atomic.Int64
	FetchesFailed   atomic.Int64
	BytesDownloaded atomic.Int64

	// Candidate metrics
	CandidatesTotal    atomic.Int64
	CandidatesAccepted atomic.Int64

	// Article metrics
	ArticlesAdded      atomic.Int64
	ArticlesBackfilled atomic.Int64
	ArticlesTouched    atomic.Int64

	// Realtime metrics
	SessionsActive atomic.Int64

	dropsMu sync.Mutex
	drops   map[string]int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		drops:  make(map[string]int64),
		logger: logger.With("component", "metrics"),
	}
}

// Drop counts a candidate dropped for reason.
func (m *Metrics) Drop(reason string) {
	m.dropsMu.Lock()
	m.drops[reason]++
	m.dropsMu.Unlock()
}

// Drops returns a copy of the drop counters by reason.
func (m *Metrics) Drops() map[string]int64 {
	m.dropsMu.Lock()
	defer m.dropsMu.Unlock()
	out := make(map[string]int64, len(m.drops))
	for k, v := range m.drops {
		out[k] = v
	}
	return out
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"tribenews_runs_total", "Total ingestion runs started", "counter", m.RunsTotal.Load()},
		{"tribenews_runs_rejected_total", "Triggers rejected because a run was in progress", "counter", m.RunsRejected.Load()},
		{"tribenews_runs_failed_total", "Runs that ended with an error", "counter", m.RunsFailed.Load()},
		{"tribenews_sources_fetched_total", "Source pages fetched", "counter", m.SourcesFetched.Load()},
		{"tribenews_sources_skipped_total", "Source pages skipped after a fetch failure", "counter", m.SourcesSkipped.Load()},
		{"tribenews_fetches_total", "Total page fetches", "counter", m.FetchesTotal.Load()},
		{"tribenews_fetches_failed_total", "Failed page fetches", "counter", m.FetchesFailed.Load()},
		{"tribenews_bytes_downloaded_total", "Total bytes downloaded", "counter", m.BytesDownloaded.Load()},
		{"tribenews_candidates_total", "Candidate links extracted", "counter", m.CandidatesTotal.Load()},
		{"tribenews_candidates_accepted_total", "Candidates accepted by the classifier", "counter", m.CandidatesAccepted.Load()},
		{"tribenews_articles_added_total", "Articles inserted", "counter", m.ArticlesAdded.Load()},
		{"tribenews_articles_backfilled_total", "Articles given an image after insert", "counter", m.ArticlesBackfilled.Load()},
		{"tribenews_articles_touched_total", "Articles whose fetched_at was refreshed", "counter", m.ArticlesTouched.Load()},
		{"tribenews_sessions_active", "Connected event stream sessions", "gauge", m.SessionsActive.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}

	drops := m.Drops()
	reasons := make([]string, 0, len(drops))
	for reason := range drops {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	fmt.Fprintf(w, "# HELP tribenews_candidates_dropped_total Candidates dropped, by reason\n")
	fmt.Fprintf(w, "# TYPE tribenews_candidates_dropped_total counter\n")
	for _, reason := range reasons {
		fmt.Fprintf(w, "tribenews_candidates_dropped_total{reason=%q} %d\n", reason, drops[reason])
	}
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	snap := map[string]int64{
		"runs_total":          m.RunsTotal.Load(),
		"runs_rejected":       m.RunsRejected.Load(),
		"runs_failed":         m.RunsFailed.Load(),
		"sources_fetched":     m.SourcesFetched.Load(),
		"sources_skipped":     m.SourcesSkipped.Load(),
		"fetches_total":       m.FetchesTotal.Load(),
		"fetches_failed":      m.FetchesFailed.Load(),
		"bytes_downloaded":    m.BytesDownloaded.Load(),
		"candidates_total":    m.CandidatesTotal.Load(),
		"candidates_accepted": m.CandidatesAccepted.Load(),
		"articles_added":      m.ArticlesAdded.Load(),
		"articles_backfilled": m.ArticlesBackfilled.Load(),
		"articles_touched":    m.ArticlesTouched.Load(),
		"sessions_active":     m.SessionsActive.Load(),
	}
	for reason, n := range m.Drops() {
		snap["dropped:"+reason] = n
	}
	return snap
}
