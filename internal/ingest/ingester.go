package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/educatorstribe/tribenews/internal/classify"
	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/fetcher"
	"github.com/educatorstribe/tribenews/internal/observability"
	"github.com/educatorstribe/tribenews/internal/parser"
	"github.com/educatorstribe/tribenews/internal/pipeline"
	"github.com/educatorstribe/tribenews/internal/realtime"
	"github.com/educatorstribe/tribenews/internal/storage"
	"github.com/educatorstribe/tribenews/internal/types"
)

// State is the ingester's lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Deps are the collaborators of an Ingester. Hub and Metrics are optional.
type Deps struct {
	Config     *config.Config
	Fetcher    fetcher.Fetcher
	Store      storage.Store
	Classifier *classify.Classifier
	Hub        *realtime.Hub
	Metrics    *observability.Metrics
	Logger     *slog.Logger

	// Now overrides the clock used for fetched_at.
	Now func() time.Time
}

// Ingester runs the fetch, classify and write cycle over every source.
// At most one run is in flight at a time.
type Ingester struct {
	cfg      *config.Config
	fetcher  fetcher.Fetcher
	links    *parser.LinkExtractor
	feeds    *parser.FeedExtractor
	pipeline *pipeline.Pipeline
	writer   *Writer
	hub      *realtime.Hub
	metrics  *observability.Metrics
	now      func() time.Time
	logger   *slog.Logger

	lock  chan struct{}
	state atomic.Int32

	lastMu sync.RWMutex
	last   *RunResult
}

// New wires an Ingester.
func New(d Deps) *Ingester {
	logger := d.Logger.With("component", "ingester")
	f := d.Fetcher
	if d.Metrics != nil {
		f = &meteredFetcher{Fetcher: f, metrics: d.Metrics}
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}

	return &Ingester{
		cfg:     d.Config,
		fetcher: f,
		links:   parser.NewLinkExtractor(d.Config.Ingest.CandidateCap, d.Logger),
		feeds:   parser.NewFeedExtractor(d.Config.Ingest.CandidateCap, d.Logger),
		pipeline: pipeline.NewStandard(pipeline.Deps{
			Classifier: d.Classifier,
			Fetcher:    f,
			Content:    parser.NewContentExtractor(d.Logger),
			Images:     parser.NewImageResolver(d.Logger),
			Logger:     d.Logger,
		}),
		writer:  NewWriter(d.Store, d.Config.Ingest, d.Logger),
		hub:     d.Hub,
		metrics: d.Metrics,
		now:     now,
		logger:  logger,
		lock:    make(chan struct{}, 1),
	}
}

// State returns whether a run is in progress.
func (i *Ingester) State() State {
	return State(i.state.Load())
}

// LastRun returns the most recent completed run, or nil.
func (i *Ingester) LastRun() *RunResult {
	i.lastMu.RLock()
	defer i.lastMu.RUnlock()
	return i.last
}

// Run performs one ingestion pass over every configured source. It returns
// types.ErrRunInProgress without waiting when another run holds the lock.
// A failing source is recorded and skipped; it never aborts the run.
func (i *Ingester) Run(ctx context.Context, trigger string) (*RunResult, error) {
	select {
	case i.lock <- struct{}{}:
	default:
		if i.metrics != nil {
			i.metrics.RunsRejected.Add(1)
		}
		i.logger.Info("run rejected, another run in progress", "trigger", trigger)
		return nil, types.ErrRunInProgress
	}
	defer func() { <-i.lock }()

	i.state.Store(int32(StateRunning))
	defer i.state.Store(int32(StateIdle))

	res := &RunResult{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: i.now().UTC(),
	}
	logger := i.logger.With("run_id", res.ID)
	logger.Info("run started", "trigger", trigger, "sources", len(i.cfg.Sources))
	if i.metrics != nil {
		i.metrics.RunsTotal.Add(1)
	}
	i.publish(realtime.EventIngestStarted, map[string]any{"run_id": res.ID, "trigger": trigger})

	for _, src := range i.cfg.Sources {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		res.add(i.runSource(ctx, logger, src))
	}

	res.FinishedAt = i.now().UTC()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)

	i.lastMu.Lock()
	i.last = res
	i.lastMu.Unlock()

	logger.Info("run finished",
		"sources", len(res.Sources),
		"skipped", res.SkippedSources(),
		"candidates", res.Candidates,
		"added", res.Added,
		"backfilled", res.Backfilled,
		"touched", res.Touched,
		"duration", res.Duration,
	)
	i.publish(realtime.EventIngestFinished, res)

	if err := ctx.Err(); err != nil {
		if i.metrics != nil {
			i.metrics.RunsFailed.Add(1)
		}
		return res, err
	}
	return res, nil
}

func (i *Ingester) runSource(ctx context.Context, logger *slog.Logger, src config.SourceConfig) SourceResult {
	start := time.Now()
	sr := SourceResult{Name: src.Name, URL: src.URL, Dropped: make(map[string]int)}
	logger = logger.With("source", src.Name)
	defer func() { sr.Duration = time.Since(start) }()

	cands, err := i.discover(ctx, src)
	if err != nil {
		sr.Skipped = true
		sr.Error = err.Error()
		var fe *types.FetchError
		if errors.As(err, &fe) {
			logger.Warn("source skipped", "status", fe.StatusCode, "error", err)
		} else {
			logger.Warn("source skipped", "error", err)
		}
		if i.metrics != nil {
			i.metrics.SourcesSkipped.Add(1)
		}
		return sr
	}
	if i.metrics != nil {
		i.metrics.SourcesFetched.Add(1)
		i.metrics.CandidatesTotal.Add(int64(len(cands)))
	}
	sr.Candidates = len(cands)

	for _, c := range cands {
		c.Source = src.Name
		c.ListingURL = src.URL
		c.Trusted = isTrusted(src, c.URL)
	}

	accepted := i.classify(ctx, logger, cands, &sr)
	sr.Accepted = len(accepted)
	if ctx.Err() != nil {
		sr.Error = ctx.Err().Error()
		return sr
	}

	wr, err := i.writer.Write(ctx, src, accepted, i.now().UTC())
	if err != nil {
		sr.Error = err.Error()
		logger.Error("write failed", "error", err)
		return sr
	}
	sr.Added = wr.Inserted
	sr.Backfilled = wr.Backfilled
	sr.Touched = wr.Touched
	if i.metrics != nil {
		i.metrics.CandidatesAccepted.Add(int64(sr.Accepted))
		i.metrics.ArticlesAdded.Add(int64(wr.Inserted))
		i.metrics.ArticlesBackfilled.Add(int64(wr.Backfilled))
		i.metrics.ArticlesTouched.Add(int64(wr.Touched))
	}

	logger.Info("source done",
		"candidates", sr.Candidates,
		"accepted", sr.Accepted,
		"added", sr.Added,
		"backfilled", sr.Backfilled,
		"touched", sr.Touched,
	)
	return sr
}

// discover fetches a source page and extracts its candidate links.
func (i *Ingester) discover(ctx context.Context, src config.SourceConfig) ([]*types.Candidate, error) {
	req, err := types.NewRequest(src.URL, types.TagListing)
	if err != nil {
		return nil, err
	}
	resp, err := i.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	var ex parser.Extractor = i.links.WithSelectors(src.Selectors)
	if src.Kind == config.SourceRSS {
		ex = i.feeds
	}
	return ex.Extract(resp)
}

type verdict struct {
	cand *types.Candidate
	drop *pipeline.Drop
	err  error
}

// classify runs the candidates through the pipeline one at a time, in page
// order, and returns the accepted ones.
func (i *Ingester) classify(ctx context.Context, logger *slog.Logger, cands []*types.Candidate, sr *SourceResult) []*types.Candidate {
	var accepted []*types.Candidate
	for _, c := range cands {
		if ctx.Err() != nil {
			break
		}
		v := i.processCandidate(ctx, c)
		switch {
		case v.err != nil:
			if errors.Is(v.err, context.Canceled) || errors.Is(v.err, context.DeadlineExceeded) {
				continue
			}
			sr.Failed++
			logger.Warn("candidate failed", "url", c.URL, "error", v.err)
		case v.drop != nil:
			sr.Dropped[v.drop.Reason]++
			if i.metrics != nil {
				i.metrics.Drop(v.drop.Reason)
			}
		case v.cand != nil:
			accepted = append(accepted, v.cand)
		}
	}
	return accepted
}

// processCandidate isolates one link: a panic in parsing is logged and the
// link is dropped.
func (i *Ingester) processCandidate(ctx context.Context, c *types.Candidate) (v verdict) {
	defer func() {
		if r := recover(); r != nil {
			v = verdict{err: fmt.Errorf("panic processing %s: %v", c.URL, r)}
		}
	}()
	cand, drop, err := i.pipeline.Process(ctx, c)
	return verdict{cand: cand, drop: drop, err: err}
}

func (i *Ingester) publish(eventType string, data any) {
	if i.hub != nil {
		i.hub.Publish(eventType, data)
	}
}

// isTrusted reports whether link sits under one of the source's trusted
// path prefixes on the source's own domain.
func isTrusted(src config.SourceConfig, link string) bool {
	if len(src.TrustedPaths) == 0 || types.DomainOf(link) != types.DomainOf(src.URL) {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	for _, p := range src.TrustedPaths {
		if strings.HasPrefix(u.Path, p) {
			return true
		}
	}
	return false
}

// meteredFetcher counts fetches and downloaded bytes.
type meteredFetcher struct {
	fetcher.Fetcher
	metrics *observability.Metrics
}

func (m *meteredFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	m.metrics.FetchesTotal.Add(1)
	resp, err := m.Fetcher.Fetch(ctx, req)
	if err != nil {
		m.metrics.FetchesFailed.Add(1)
		return nil, err
	}
	m.metrics.BytesDownloaded.Add(int64(len(resp.Body)))
	return resp, nil
}
