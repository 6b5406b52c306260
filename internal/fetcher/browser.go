package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/types"
)

// BrowserFetcher renders pages in headless Chromium via Rod. It is meant for
// listing pages that only build their article links with JavaScript.
type BrowserFetcher struct {
	browser   *rod.Browser
	cfg       *config.FetcherConfig
	userAgent string
	logger    *slog.Logger
	pages     chan struct{}
}

// NewBrowserFetcher launches (or connects to) a browser.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bcfg := cfg.Fetcher.Browser

	controlURL := bcfg.ControlURL
	if controlURL == "" {
		u, err := launcher.New().
			Headless(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("no-sandbox").
			Set("disable-blink-features", "AutomationControlled").
			Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	ua := cfg.Fetcher.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}

	bf := &BrowserFetcher{
		browser:   browser,
		cfg:       &cfg.Fetcher,
		userAgent: ua,
		logger:    logger.With("component", "browser_fetcher"),
		pages:     make(chan struct{}, max(bcfg.MaxPages, 1)),
	}

	bf.logger.Info("browser fetcher ready", "max_pages", cap(bf.pages), "stealth", bcfg.Stealth)
	return bf, nil
}

// Fetch navigates to the URL and returns the rendered HTML. A main document
// answered with anything but 200 is a *types.FetchError.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	select {
	case bf.pages <- struct{}{}:
	case <-ctx.Done():
		return nil, &types.FetchError{URL: req.URLString(), Err: ctx.Err()}
	}
	defer func() { <-bf.pages }()

	start := time.Now()

	page, err := bf.newPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	defer func() { _ = page.Close() }()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: bf.userAgent}); err != nil {
		bf.logger.Warn("failed to set user agent", "error", err)
	}

	page = page.Context(ctx).Timeout(timeoutFor(req, bf.cfg))

	evCtx, stopEvents := context.WithCancel(ctx)
	defer stopEvents()
	status := &documentStatus{frame: page.FrameID}
	go page.Context(evCtx).EachEvent(status.observe)()

	if err := page.Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}
	if err := status.check(req.URLString()); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if html == "" {
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrEmptyResponse}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil && info.URL != "" {
		finalURL = info.URL
	}

	resp := types.NewBrowserResponse(req, []byte(html), finalURL, time.Since(start))
	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", resp.FetchDuration,
	)
	return resp, nil
}

func (bf *BrowserFetcher) newPage() (*rod.Page, error) {
	if bf.cfg.Browser.Stealth {
		return stealth.Page(bf.browser)
	}
	return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// Close shuts down the browser.
func (bf *BrowserFetcher) Close() error {
	return bf.browser.Close()
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

// documentStatus records the HTTP status of a page's main document.
type documentStatus struct {
	frame proto.PageFrameID

	mu   sync.Mutex
	code int
}

func (d *documentStatus) observe(e *proto.NetworkResponseReceived) {
	if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
		return
	}
	if d.frame != "" && e.FrameID != d.frame {
		return
	}
	d.mu.Lock()
	d.code = e.Response.Status
	d.mu.Unlock()
}

// check returns a FetchError for a non-200 document. A status that was never
// observed is accepted, as for pages served from the browser cache.
func (d *documentStatus) check(url string) error {
	d.mu.Lock()
	code := d.code
	d.mu.Unlock()
	if code == 0 || code == http.StatusOK {
		return nil
	}
	return &types.FetchError{
		URL:        url,
		StatusCode: code,
		Err:        fmt.Errorf("HTTP %d", code),
	}
}
