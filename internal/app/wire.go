package app

import (
	"context"
	"fmt"
	"io"

	"duesync/internal/config"
	"duesync/internal/gcal"
	"duesync/internal/ics"
	appLog "duesync/internal/log"
	"duesync/internal/notify"
	"duesync/internal/reconcile"
	"duesync/internal/source"
)

// NewFromConfig builds a Runner for cfg. The calendar itself is opened at
// the start of every run, so expired credentials surface as a run error.
func NewFromConfig(ctx context.Context, cfg *config.Config, out io.Writer) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	window, err := cfg.Window()
	if err != nil {
		return nil, err
	}

	src, err := newSource(cfg)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		Source:  src,
		Gateway: newGatewayFactory(cfg),
		Options: reconcile.Options{
			UpdateExisting: cfg.UpdateExisting,
			Window:         window,
			Location:       loc,
		},
		Output: out,
	}

	if arn := cfg.Notify.SNSTopicARN; arn != "" {
		n, err := notify.NewSNS(ctx, arn)
		if err != nil {
			return nil, err
		}
		r.Notifier = n
		appLog.Info("run notifications enabled", "topic", arn)
	}

	appLog.Info("runner configured",
		"source", cfg.Source.Kind,
		"calendar", cfg.Calendar.Kind,
		"timezone", loc.String(),
		"update_existing", cfg.UpdateExisting,
		"duplicate_window", window.String(),
	)
	return r, nil
}

func newSource(cfg *config.Config) (reconcile.Source, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	file := source.NewFile(cfg.Source.Path, cfg.Source.Label, loc)

	var scraper source.Scraper
	switch cfg.Source.Kind {
	case config.SourceFile:
		return file, nil
	case config.SourceBrowser:
		scraper = &source.Browser{
			PortalURL: cfg.Source.PortalURL,
			Username:  cfg.Source.Username,
			Password:  cfg.Source.Password,
			Location:  loc,
			Timeout:   cfg.SourceTimeout(),
		}
	case config.SourceHTTP:
		scraper = &source.Portal{
			PortalURL: cfg.Source.PortalURL,
			Username:  cfg.Source.Username,
			Password:  cfg.Source.Password,
			Location:  loc,
			Timeout:   cfg.SourceTimeout(),
		}
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}

	maxAge, err := cfg.SourceMaxAge()
	if err != nil {
		return nil, err
	}
	return source.NewCached(file, scraper, maxAge, cfg.Source.CSVPath), nil
}

func newGatewayFactory(cfg *config.Config) GatewayFactory {
	loc, _ := cfg.Location()

	if cfg.Calendar.Kind == config.CalendarICS {
		store := ics.NewStore(cfg.Calendar.ICSPath, loc)
		return func(context.Context) (reconcile.Gateway, error) {
			return store, nil
		}
	}

	opts := gcal.Options{
		CalendarID:      cfg.Calendar.CalendarID,
		CredentialsPath: cfg.Calendar.CredentialsPath,
		TokenPath:       cfg.Calendar.TokenPath,
		Location:        loc,
	}
	return func(ctx context.Context) (reconcile.Gateway, error) {
		return gcal.New(ctx, opts)
	}
}
