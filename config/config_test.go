package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Validation.MinListingsPerPage != 20 {
		t.Errorf("MinListingsPerPage = %d, want 20", cfg.Validation.MinListingsPerPage)
	}
	if cfg.Validation.MinCompleteRatio != 0.6 {
		t.Errorf("MinCompleteRatio = %v, want 0.6", cfg.Validation.MinCompleteRatio)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Scrape.ScrollSteps != 5 {
		t.Errorf("ScrollSteps = %d, want 5", cfg.Scrape.ScrollSteps)
	}
	if cfg.Site.ConsentTimeout != 2*time.Minute {
		t.Errorf("ConsentTimeout = %v, want 2m", cfg.Site.ConsentTimeout)
	}
	if len(cfg.Browser.UserAgents) == 0 {
		t.Error("UserAgents pool is empty")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("IMMO_MIN_LISTINGS", "15")
	t.Setenv("IMMO_MIN_COMPLETE_RATIO", "0.8")
	t.Setenv("IMMO_HEADLESS", "true")
	t.Setenv("IMMO_PAGE_TIMEOUT", "45s")
	t.Setenv("IMMO_USER_AGENTS", "ua-one, ua-two")

	cfg := Load()

	if cfg.Validation.MinListingsPerPage != 15 {
		t.Errorf("MinListingsPerPage = %d, want 15", cfg.Validation.MinListingsPerPage)
	}
	if cfg.Validation.MinCompleteRatio != 0.8 {
		t.Errorf("MinCompleteRatio = %v, want 0.8", cfg.Validation.MinCompleteRatio)
	}
	if !cfg.Browser.Headless {
		t.Error("Headless override not applied")
	}
	if cfg.Scrape.PageTimeout != 45*time.Second {
		t.Errorf("PageTimeout = %v, want 45s", cfg.Scrape.PageTimeout)
	}
	if len(cfg.Browser.UserAgents) != 2 || cfg.Browser.UserAgents[1] != "ua-two" {
		t.Errorf("UserAgents = %v, want [ua-one ua-two]", cfg.Browser.UserAgents)
	}
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("IMMO_MIN_LISTINGS", "not-a-number")
	t.Setenv("IMMO_PAGE_TIMEOUT", "soon")

	cfg := Load()
	if cfg.Validation.MinListingsPerPage != 20 {
		t.Errorf("malformed int should fall back to default, got %d", cfg.Validation.MinListingsPerPage)
	}
	if cfg.Scrape.PageTimeout != 90*time.Second {
		t.Errorf("malformed duration should fall back to default, got %v", cfg.Scrape.PageTimeout)
	}
}

func TestClampTabs(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {-3, 1}, {1, 1}, {5, 5}, {10, 10}, {11, 10}, {100, 10},
	}
	for _, c := range cases {
		if got := ClampTabs(c.in); got != c.want {
			t.Errorf("ClampTabs(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
