// Package session owns the single browser process every worker shares.
// The underlying automation engine focuses one tab at a time, so every
// focus-changing or measurement operation funnels through one exclusive
// gate; holding that contract here keeps the rest of the pipeline free of
// browser-level locking concerns.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
	"golang.org/x/time/rate"

	"github.com/hexelier/immoharvest/config"
	"github.com/hexelier/immoharvest/models"
	"github.com/hexelier/immoharvest/timing"
)

// Common desktop viewport sizes used to diversify tab fingerprints.
var viewports = [][2]int{
	{1920, 1080},
	{1366, 768},
	{1536, 864},
	{1440, 900},
	{1600, 900},
	{1280, 720},
}

// Session wraps one browser with a fixed pool of tabs sharing cookies and
// consent state. It is safe for concurrent use; all tab-affecting calls
// serialize on the internal gate.
type Session struct {
	cfg     config.BrowserConfig
	site    config.SiteConfig
	profile timing.Profile

	browser *rod.Browser
	tabs    []*rod.Page

	// gate serializes every focus-changing operation. The automation
	// engine is single-threaded per session: only one tab is "active".
	gate sync.Mutex
	rng  *rand.Rand // guarded by gate

	limiter *rate.Limiter

	closeOnce sync.Once
}

// New prepares a session; Open launches the browser.
func New(cfg config.BrowserConfig, rl config.RateLimitConfig, site config.SiteConfig, profile timing.Profile) *Session {
	return &Session{
		cfg:     cfg,
		site:    site,
		profile: profile,
		rng:     timing.NewRand(),
		limiter: rate.NewLimiter(rate.Limit(rl.NavigationsPerSecond), rl.Burst),
	}
}

// Open launches the browser, opens the first tab, and loads the initial
// URL. A launch failure is fatal: the run cannot continue without a
// browser process.
func (s *Session) Open(ctx context.Context) error {
	l := launcher.New().
		Headless(s.cfg.Headless).
		NoSandbox(s.cfg.NoSandbox)

	if s.cfg.BrowserBin != "" {
		l = l.Bin(s.cfg.BrowserBin)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	if len(s.cfg.UserAgents) > 0 {
		ua := s.cfg.UserAgents[s.rng.Intn(len(s.cfg.UserAgents))]
		l.Set(flags.Flag("user-agent"), ua)
		slog.Debug("user agent selected", "ua", ua)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", s.cfg.Headless)

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}
	s.browser = browser

	first, err := s.preparePage()
	if err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to open initial tab", err)
	}
	s.tabs = []*rod.Page{first}

	if err := s.Navigate(ctx, first, s.site.BaseURL); err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "failed to load initial page", err)
	}
	return nil
}

// preparePage creates a page with stealth JS and a plausible referer
// installed before any navigation, so they apply to every load.
func (s *Session) preparePage() (*rod.Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Referer": "https://www.google.com/search?q=immobilier",
		}),
	}.Call(page)
	return page, nil
}

// EnsureTabs grows the tab pool to n, spacing creations with human-like
// delays. Primary creation goes through the target API; when that fails
// the session falls back to window.open and adopts the newest unknown
// target. The pool may end up smaller than requested; the caller should
// size its worker pool from TabCount.
func (s *Session) EnsureTabs(ctx context.Context, n int) error {
	s.gate.Lock()
	defer s.gate.Unlock()

	for len(s.tabs) < n {
		if err := s.profile.TabOpen.Sleep(ctx, s.rng); err != nil {
			return err
		}

		page, err := s.preparePage()
		if err != nil {
			slog.Warn("tab creation via target API failed, trying window.open",
				"tab", len(s.tabs)+1, "error", err)
			page, err = s.adoptViaWindowOpen()
		}
		if err != nil {
			slog.Error("could not create tab, continuing with a smaller pool",
				"have", len(s.tabs), "want", n, "error", err)
			break
		}

		s.randomizeViewportLocked(page)
		s.tabs = append(s.tabs, page)
		slog.Info("tab ready", "tab", len(s.tabs), "of", n)
	}

	if len(s.tabs) == 0 {
		return models.NewScrapeError(models.ErrCodeTabCreate, "no usable tabs", nil)
	}
	return nil
}

// adoptViaWindowOpen asks the first tab to open a blank sibling, then
// claims whichever target the browser reports that we do not know yet.
func (s *Session) adoptViaWindowOpen() (*rod.Page, error) {
	if len(s.tabs) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeTabCreate, "no tab to open from", nil)
	}
	if _, err := s.tabs[0].Eval(`() => window.open("about:blank", "_blank")`); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeTabCreate, "window.open failed", err)
	}

	pages, err := s.browser.Pages()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeTabCreate, "could not list pages", err)
	}
	known := make(map[proto.TargetTargetID]bool, len(s.tabs))
	for _, t := range s.tabs {
		known[t.TargetID] = true
	}
	for _, p := range pages {
		if !known[p.TargetID] {
			if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
				slog.Warn("stealth injection failed on adopted tab", "error", err)
			}
			return p, nil
		}
	}
	return nil, models.NewScrapeError(models.ErrCodeTabCreate, "window.open produced no new target", nil)
}

// TabCount returns the size of the tab pool.
func (s *Session) TabCount() int {
	s.gate.Lock()
	defer s.gate.Unlock()
	return len(s.tabs)
}

// WithTab acquires the exclusive gate, waits the human tab-switch delay,
// focuses the tab at idx, and runs fn against it. Nothing else can touch
// the browser until fn returns, so fn should do only work that genuinely
// needs focus.
func (s *Session) WithTab(ctx context.Context, idx int, fn func(*rod.Page) error) error {
	s.gate.Lock()
	defer s.gate.Unlock()

	if idx < 0 || idx >= len(s.tabs) {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("tab index %d out of range [0,%d)", idx, len(s.tabs)), nil)
	}
	if err := s.profile.TabSwitch.Sleep(ctx, s.rng); err != nil {
		return err
	}

	tab := s.tabs[idx]
	if _, err := tab.Activate(); err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "failed to focus tab", err)
	}
	return fn(tab)
}

// Navigate loads url in the given tab, throttled by the session-wide
// navigation limiter. Callers must hold the gate (i.e. call from WithTab)
// except during Open.
func (s *Session) Navigate(ctx context.Context, tab *rod.Page, url string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := tab.Context(ctx).Navigate(url); err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "navigation failed", err)
	}
	return nil
}

// randomizeViewportLocked resizes a tab to a random common screen size.
// Purely cosmetic fingerprint noise: failures are logged and ignored.
func (s *Session) randomizeViewportLocked(tab *rod.Page) {
	vp := viewports[s.rng.Intn(len(viewports))]
	err := tab.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp[0],
		Height:            vp[1],
		DeviceScaleFactor: 1,
	})
	if err != nil {
		slog.Warn("viewport randomization failed", "error", err)
		return
	}
	slog.Debug("tab viewport set", "width", vp[0], "height", vp[1])
}

// Close tears down the browser. Safe to call multiple times; only the
// first call acts, so every exit path can defer it.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.browser == nil {
			return
		}
		slog.Info("closing browser session")
		for _, t := range s.tabs {
			_ = t.Close()
		}
		if err := s.browser.Close(); err != nil {
			slog.Warn("browser close reported an error", "error", err)
		}
	})
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
