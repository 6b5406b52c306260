package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/educatorstribe/tribenews/internal/types"
)

const (
	robotsTTL     = time.Hour
	robotsTimeout = 5 * time.Second
)

// RobotsFetcher refuses URLs that the host's robots.txt disallows for the
// configured agent. Refusals are *types.FetchError wrapping
// types.ErrDisallowed, so callers skip them like any failed fetch.
type RobotsFetcher struct {
	Fetcher

	robots Fetcher
	agent  string
	cache  map[string]*robotsEntry
	mu     sync.RWMutex
	logger *slog.Logger
}

// robotsEntry is the parsed robots.txt of one origin. A nil data allows
// everything.
type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// NewRobotsFetcher wraps inner. robots.txt files are retrieved with robots,
// which may be inner itself.
func NewRobotsFetcher(inner, robots Fetcher, agent string, logger *slog.Logger) *RobotsFetcher {
	return &RobotsFetcher{
		Fetcher: inner,
		robots:  robots,
		agent:   strings.ToLower(agent),
		cache:   make(map[string]*robotsEntry),
		logger:  logger.With("component", "robots"),
	}
}

// Fetch checks robots.txt before delegating.
func (rf *RobotsFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	origin := req.URL.Scheme + "://" + req.URL.Host
	entry := rf.rulesFor(ctx, origin)

	path := req.URL.EscapedPath()
	if path == "" {
		path = "/"
	}
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}

	if entry.data != nil && !entry.data.TestAgent(path, rf.agent) {
		rf.logger.Debug("disallowed by robots.txt", "url", req.URLString())
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrDisallowed}
	}
	return rf.Fetcher.Fetch(ctx, req)
}

// Close closes the wrapped fetcher and, when distinct, the robots fetcher.
func (rf *RobotsFetcher) Close() error {
	err := rf.Fetcher.Close()
	if rf.robots != rf.Fetcher {
		err = errors.Join(err, rf.robots.Close())
	}
	return err
}

func (rf *RobotsFetcher) rulesFor(ctx context.Context, origin string) *robotsEntry {
	rf.mu.RLock()
	e, ok := rf.cache[origin]
	rf.mu.RUnlock()
	if ok && time.Since(e.fetchedAt) < robotsTTL {
		return e
	}

	e = &robotsEntry{data: rf.fetchRules(ctx, origin), fetchedAt: time.Now()}

	rf.mu.Lock()
	rf.cache[origin] = e
	rf.mu.Unlock()
	return e
}

// fetchRules downloads and parses robots.txt. Status codes follow the
// robotstxt package: 4xx allows everything, 5xx disallows everything. A
// transport failure or an unparsable file allows everything.
func (rf *RobotsFetcher) fetchRules(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := types.NewRequest(origin+"/robots.txt", types.TagArticle)
	if err != nil {
		return nil
	}
	req.Timeout = robotsTimeout

	status, body := 0, []byte(nil)
	resp, err := rf.robots.Fetch(ctx, req)
	if err != nil {
		var fe *types.FetchError
		if !errors.As(err, &fe) || fe.StatusCode == 0 {
			rf.logger.Debug("robots.txt unavailable", "origin", origin, "error", err)
			return nil
		}
		status = fe.StatusCode
	} else {
		status, body = resp.StatusCode, resp.Body
	}

	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		rf.logger.Debug("robots.txt unparsable", "origin", origin, "error", err)
		return nil
	}
	return data
}
