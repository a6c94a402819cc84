package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hexelier/immoharvest/config"
)

func TestValidatePage(t *testing.T) {
	v := config.ValidationConfig{MinListingsPerPage: 20, MinCompleteRatio: 0.6}

	tests := []struct {
		name     string
		listings int
		complete int
		want     bool
	}{
		{"healthy page", 25, 20, true},
		{"too few cards", 18, 18, false},
		{"ratio just under", 25, 14, false},
		{"ratio exactly met", 25, 15, true},
		{"ratio just over", 25, 16, true},
		{"exact minimum count and ratio", 20, 12, true},
		{"empty page", 0, 0, false},
		{"all complete but short", 19, 19, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validatePage(tt.listings, tt.complete, v); got != tt.want {
				t.Errorf("validatePage(%d, %d) = %v, want %v",
					tt.listings, tt.complete, got, tt.want)
			}
		})
	}
}

func TestDiagnosticsSaveCard(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDiagnostics(dir)
	if err != nil {
		t.Fatalf("NewDiagnostics: %v", err)
	}

	d.SaveCard(7, 3, "<div>broken card</div>")

	raw, err := os.ReadFile(filepath.Join(dir, "debug_html", "page_7_card_3.html"))
	if err != nil {
		t.Fatalf("card artifact not written: %v", err)
	}
	if string(raw) != "<div>broken card</div>" {
		t.Errorf("card artifact content = %q", raw)
	}
}

func TestDiagnosticsCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewDiagnostics(dir); err != nil {
		t.Fatalf("NewDiagnostics: %v", err)
	}
	for _, sub := range []string{"failed_pages", "debug_html"} {
		if fi, err := os.Stat(filepath.Join(dir, sub)); err != nil || !fi.IsDir() {
			t.Errorf("%s not created as a directory (err=%v)", sub, err)
		}
	}
}
