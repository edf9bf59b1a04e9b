// Package source provides the due date record sources: a JSON file written
// by earlier scrapes, and scrapers for the Koha OPAC checkouts page (headless
// Chromium or plain HTTP) that keep that file fresh.
package source

import (
	"context"
	"time"

	"duesync/internal/model"
)

// Scraper fetches records straight from the library portal.
type Scraper interface {
	Records(ctx context.Context) ([]model.DueDateRecord, error)
}

const defaultTimeout = 60 * time.Second

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}
