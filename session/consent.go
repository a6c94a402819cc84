package session

import (
	"context"
	"log/slog"
	"time"
)

// consentOverlayVisible probes the usercentrics consent widget, which lives
// inside a shadow root and is invisible to plain selector queries.
const consentOverlayVisible = `() => {
	const root = document.querySelector('#usercentrics-root');
	if (!root || !root.shadowRoot) return false;
	const button = root.shadowRoot.querySelector('[data-testid="uc-accept-all-button"]');
	return button !== null && button.offsetParent !== null;
}`

// AwaitConsent blocks until the cookie-consent overlay on the initial tab
// disappears (the operator clicks it once; every tab shares the consent
// state afterwards). The wait is bounded: on timeout it logs a warning and
// returns nil, since consent may already be satisfied in ways the probe
// cannot see. Probe errors are treated as "overlay gone".
func (s *Session) AwaitConsent(ctx context.Context) error {
	slog.Info("waiting for manual cookie acceptance in the browser window",
		"timeout", s.site.ConsentTimeout)

	deadline := time.Now().Add(s.site.ConsentTimeout)
	ticker := time.NewTicker(s.site.ConsentPollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		visible, err := s.consentVisible()
		if err != nil {
			slog.Debug("consent probe failed, assuming overlay is gone", "error", err)
			return nil
		}
		if !visible {
			slog.Info("consent overlay dismissed, proceeding")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	slog.Warn("consent wait timed out, proceeding anyway", "timeout", s.site.ConsentTimeout)
	return nil
}

func (s *Session) consentVisible() (bool, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	res, err := s.tabs[0].Eval(consentOverlayVisible)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}
