package sink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"github.com/hexelier/immoharvest/models"
)

// utf8BOM makes spreadsheet software detect the encoding; without it,
// accented city names render as mojibake when the file is double-clicked.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSink writes listings to a single delimited file, one row per record,
// behind its own mutex (independent of the browser session lock).
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
	path string
}

// NewCSVSink creates dir if needed and initializes the file with a BOM and
// the 13-column header row.
func NewCSVSink(dir, filename string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSinkWrite, "failed to create output dir", err)
	}
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSinkWrite, "failed to create output file", err)
	}
	if _, err := f.Write(utf8BOM); err != nil {
		f.Close()
		return nil, models.NewScrapeError(models.ErrCodeSinkWrite, "failed to write BOM", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(models.CSVHeader); err != nil {
		f.Close()
		return nil, models.NewScrapeError(models.ErrCodeSinkWrite, "failed to write header", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, models.NewScrapeError(models.ErrCodeSinkWrite, "failed to flush header", err)
	}

	return &CSVSink{file: f, w: w, path: path}, nil
}

// Path returns the location of the output file.
func (s *CSVSink) Path() string { return s.path }

// Append writes the page's listings as one contiguous block and flushes.
func (s *CSVSink) Append(ctx context.Context, page int, listings []models.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range listings {
		if err := s.w.Write(l.CSVRow()); err != nil {
			return models.NewScrapeError(models.ErrCodeSinkWrite, "failed to write row", err)
		}
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return models.NewScrapeError(models.ErrCodeSinkWrite, "failed to flush rows", err)
	}
	return nil
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.file.Close()
}
