package source

import (
	"context"
	"fmt"
	"time"

	appLog "duesync/internal/log"
	"duesync/internal/model"
)

// Cached serves records from File while it is fresh and scrapes otherwise.
// A successful scrape rewrites File (and the CSV export when CSVPath is
// set). A failed scrape falls back to a stale file if there is one.
type Cached struct {
	File    *File
	Scraper Scraper
	MaxAge  time.Duration
	CSVPath string

	now func() time.Time
}

// NewCached wires a scraper behind file.
func NewCached(file *File, scraper Scraper, maxAge time.Duration, csvPath string) *Cached {
	return &Cached{
		File:    file,
		Scraper: scraper,
		MaxAge:  maxAge,
		CSVPath: csvPath,
		now:     time.Now,
	}
}

func (c *Cached) Records(ctx context.Context) ([]model.DueDateRecord, error) {
	now := c.clock()

	if at, err := c.File.ExtractedAt(); err == nil {
		if age := now.Sub(at); age >= 0 && age < c.MaxAge {
			appLog.Info("using cached records", "path", c.File.Path, "age", age.Round(time.Second).String())
			return c.File.Records(ctx)
		}
	}

	records, err := c.Scraper.Records(ctx)
	if err != nil {
		if c.File.Exists() {
			appLog.Warn("scrape failed, using stale records", "path", c.File.Path, "err", err)
			return c.File.Records(ctx)
		}
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}

	appLog.Info("scraped records", "count", len(records))
	if err := c.File.Save(records, now); err != nil {
		appLog.Error("failed to save records", err, "path", c.File.Path)
	}
	if c.CSVPath != "" {
		if err := SaveCSV(c.CSVPath, records); err != nil {
			appLog.Error("failed to save csv export", err, "path", c.CSVPath)
		}
	}
	return records, nil
}

func (c *Cached) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}
