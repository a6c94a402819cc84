package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hexelier/immoharvest/timing"
)

// Config holds all application configuration.
type Config struct {
	Site       SiteConfig
	Browser    BrowserConfig
	Scrape     ScrapeConfig
	Validation ValidationConfig
	Retry      RetryConfig
	RateLimit  RateLimitConfig
	Output     OutputConfig
	Database   DatabaseConfig
	Log        LogConfig
	Timing     timing.Profile
}

// SiteConfig describes the one fixed search endpoint being harvested.
type SiteConfig struct {
	// BaseURL is the search-results endpoint; the page number is appended
	// as a &page=N query parameter.
	BaseURL string

	// Origin prefixes relative detail URLs found in cards.
	Origin string

	// CardSelector locates one listing card in the rendered page.
	CardSelector string

	// ConsentTimeout bounds the wait for manual cookie acceptance.
	ConsentTimeout time.Duration // default: 2m

	// ConsentPollInterval is the spacing between consent-overlay checks.
	ConsentPollInterval time.Duration // default: 2s
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless. Keep false for
	// runs that need the manual consent click.
	Headless bool // default: false

	// Tabs is the tab-pool size; one worker per tab. Clamped to 1..10.
	Tabs int // default: 3

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgents is the pool from which each run picks its agent string.
	UserAgents []string
}

// ScrapeConfig controls per-page acquisition behavior.
type ScrapeConfig struct {
	// StartPage and EndPage bound the inclusive page range.
	StartPage int
	EndPage   int

	// PageTimeout is the hard deadline for one page attempt.
	PageTimeout time.Duration // default: 90s

	// WorkerMaxAttempts bounds the worker's inner retry loop for
	// navigation errors and timeouts.
	WorkerMaxAttempts int // default: 3

	// WorkerBackoff is the fixed pause between inner attempts.
	WorkerBackoff time.Duration // default: 5s

	// ScrollSteps divides the page height during lazy-load convergence.
	ScrollSteps int // default: 5

	// Debug enables diagnostic artifacts for problematic pages and cards.
	Debug bool
}

// ValidationConfig holds the page-level health thresholds. A page that
// navigated fine can still be a bot-detection placeholder; these two checks
// are the only evidence of a genuinely rendered results page.
type ValidationConfig struct {
	// MinListingsPerPage is the minimum card count for a healthy page.
	MinListingsPerPage int // default: 20

	// MinCompleteRatio is the minimum fraction of cards passing the
	// minimum-viability predicate.
	MinCompleteRatio float64 // default: 0.6
}

// RetryConfig controls orchestrator-level redundancy.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget per page across rounds.
	MaxAttempts int // default: 3

	// MaxRounds bounds the number of retry rounds.
	MaxRounds int // default: 2
}

// RateLimitConfig throttles navigations across the whole session.
type RateLimitConfig struct {
	// NavigationsPerSecond is the sustained navigation rate.
	NavigationsPerSecond float64 // default: 0.5

	// Burst is the maximum navigation burst.
	Burst int // default: 2
}

// OutputConfig controls the CSV sink and debug artifact layout.
type OutputConfig struct {
	// Dir is the output directory; created if missing.
	Dir string // default: "output"

	// File is the CSV filename inside Dir.
	File string
}

// DatabaseConfig controls the optional Postgres sink.
type DatabaseConfig struct {
	// DSN enables the Postgres sink when non-empty.
	DSN string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
// CLI flags are applied on top by the caller.
func Load() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:             envOr("IMMO_BASE_URL", defaultBaseURL),
			Origin:              envOr("IMMO_ORIGIN", "https://www.seloger.com"),
			CardSelector:        envOr("IMMO_CARD_SELECTOR", `div[data-testid="serp-core-classified-card-testid"]`),
			ConsentTimeout:      envDurationOr("IMMO_CONSENT_TIMEOUT", 2*time.Minute),
			ConsentPollInterval: envDurationOr("IMMO_CONSENT_POLL", 2*time.Second),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("IMMO_HEADLESS", false),
			Tabs:       envIntOr("IMMO_TABS", 3),
			NoSandbox:  envBoolOr("IMMO_NO_SANDBOX", false),
			BrowserBin: os.Getenv("IMMO_BROWSER_BIN"),
			UserAgents: envSliceOr("IMMO_USER_AGENTS", defaultUserAgents()),
		},
		Scrape: ScrapeConfig{
			StartPage:         envIntOr("IMMO_START_PAGE", 0),
			EndPage:           envIntOr("IMMO_END_PAGE", 0),
			PageTimeout:       envDurationOr("IMMO_PAGE_TIMEOUT", 90*time.Second),
			WorkerMaxAttempts: envIntOr("IMMO_WORKER_ATTEMPTS", 3),
			WorkerBackoff:     envDurationOr("IMMO_WORKER_BACKOFF", 5*time.Second),
			ScrollSteps:       envIntOr("IMMO_SCROLL_STEPS", 5),
			Debug:             envBoolOr("IMMO_DEBUG", false),
		},
		Validation: ValidationConfig{
			MinListingsPerPage: envIntOr("IMMO_MIN_LISTINGS", 20),
			MinCompleteRatio:   envFloatOr("IMMO_MIN_COMPLETE_RATIO", 0.6),
		},
		Retry: RetryConfig{
			MaxAttempts: envIntOr("IMMO_MAX_RETRIES", 3),
			MaxRounds:   envIntOr("IMMO_MAX_RETRY_ROUNDS", 2),
		},
		RateLimit: RateLimitConfig{
			NavigationsPerSecond: envFloatOr("IMMO_NAV_RPS", 0.5),
			Burst:                envIntOr("IMMO_NAV_BURST", 2),
		},
		Output: OutputConfig{
			Dir:  envOr("IMMO_OUTPUT_DIR", "output"),
			File: os.Getenv("IMMO_OUTPUT_FILE"),
		},
		Database: DatabaseConfig{
			DSN: os.Getenv("IMMO_PG_DSN"),
		},
		Log: LogConfig{
			Level:  envOr("IMMO_LOG_LEVEL", "info"),
			Format: envOr("IMMO_LOG_FORMAT", "text"),
		},
		Timing: timing.Default(),
	}
}

// ClampTabs bounds the tab count to the supported 1..10 window.
func ClampTabs(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// defaultBaseURL is the fixed search endpoint (buy, houses+apartments,
// polygon around Paris). The polyline is opaque site state; treat as-is.
const defaultBaseURL = "https://www.seloger.com/classified-search?distributionTypes=Buy&estateTypes=House,Apartment&locations=eyJwbGFjZUlkIjoiQUQwOEZSMzEwOTYiLCJyYWRpdXMiOjMwLCJwb2x5bGluZSI6Im1wempIZWhsTXBfQGJ1TmhfQm5hTmp7Q2J7TGpxRW5jS2JfR3h8SHxiSGJqRmx7SGxuQ3ZnSW5tQGxnSXlyQGx6SHtyQ25hSGFtRmp9Rn19SHBvRWtiS3x5Q2N4TGp-QWF9TWRfQHtvTmVfQHlvTmt-QWF9TX15Q2N4THFvRW1iS2t9Rnt9SG9hSGFtRm16SH1yQ21nSXlyQHdnSXBtQG17SGxuQ31iSGBqRmNfR3p8SGtxRWxjS2t7Q2J7TGlfQm5hTnFfQGJ1TiIsImNvb3JkaW5hdGVzIjp7ImxhdCI6NDguODU5Njk0NDg0NjY4NTE2LCJsbmciOjIuMzYxNzg2NTQ3MDMwNTU5fX0"

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
