package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Diagnostics captures evidence from problem pages so selector drift can be
// debugged offline. Everything here is best-effort: a failed capture is
// logged and otherwise ignored, since diagnostics must never sink a run.
type Diagnostics struct {
	pagesDir string
	cardsDir string

	mu sync.Mutex
}

// NewDiagnostics creates the capture directories under baseDir.
func NewDiagnostics(baseDir string) (*Diagnostics, error) {
	d := &Diagnostics{
		pagesDir: filepath.Join(baseDir, "failed_pages"),
		cardsDir: filepath.Join(baseDir, "debug_html"),
	}
	for _, dir := range []string{d.pagesDir, d.cardsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// SavePage dumps the full page HTML and a screenshot of a page that came
// up empty. Caller must hold the session gate (the tab must be focused for
// the screenshot).
func (d *Diagnostics) SavePage(tab *rod.Page, page, attempt int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stem := filepath.Join(d.pagesDir, fmt.Sprintf("page_%d_attempt_%d", page, attempt))

	html, err := tab.HTML()
	if err != nil {
		slog.Warn("diagnostic HTML capture failed", "page", page, "error", err)
	} else if err := os.WriteFile(stem+".html", []byte(html), 0o644); err != nil {
		slog.Warn("diagnostic HTML write failed", "page", page, "error", err)
	}

	shot, err := tab.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		slog.Warn("diagnostic screenshot failed", "page", page, "error", err)
		return
	}
	if err := os.WriteFile(stem+".png", shot, 0o644); err != nil {
		slog.Warn("diagnostic screenshot write failed", "page", page, "error", err)
	}
}

// SaveCard writes one card's HTML fragment for a listing that extracted
// incomplete.
func (d *Diagnostics) SaveCard(page, card int, html string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := filepath.Join(d.cardsDir, fmt.Sprintf("page_%d_card_%d.html", page, card))
	if err := os.WriteFile(name, []byte(html), 0o644); err != nil {
		slog.Warn("diagnostic card write failed", "page", page, "card", card, "error", err)
	}
}
