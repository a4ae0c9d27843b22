package main

import (
	"context"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mc-extractor/internal/batch"
	"github.com/sells-group/mc-extractor/internal/config"
	"github.com/sells-group/mc-extractor/internal/page"
	"github.com/sells-group/mc-extractor/internal/resilience"
	"github.com/sells-group/mc-extractor/internal/safer"
	"github.com/sells-group/mc-extractor/internal/sink"
	"github.com/sells-group/mc-extractor/internal/store"
)

// initStore opens the run history store. It returns a nil store when the
// driver is "none".
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// recorder adapts an optional store to the batch recorder.
func recorder(st store.Store) batch.Recorder {
	if st == nil {
		return nil
	}
	return st
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// sessionFactory opens the configured page session backend.
func sessionFactory(sc config.SessionConfig) page.Factory {
	if sc.Driver == "http" {
		return func(context.Context) (page.Session, error) {
			s, err := page.NewHTTPSession(page.HTTPConfig{
				UserAgent:  sc.UserAgent,
				Timeout:    secs(sc.HTTPTimeoutSecs),
				RatePerSec: sc.RatePerSec,
				Burst:      sc.Burst,
				Retry:      resilience.RetryFromSettings(sc.MaxRetries, sc.RetryBackoffMs),
			})
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	return func(ctx context.Context) (page.Session, error) {
		s, err := page.NewBrowserSession(ctx, page.BrowserConfig{
			Headless:        sc.Headless,
			UserAgent:       sc.UserAgent,
			PageLoadTimeout: secs(sc.PageLoadTimeoutSecs),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func pipelineTimeouts(pc config.PipelineConfig) safer.Timeouts {
	return safer.Timeouts{
		Search:         secs(pc.SearchTimeoutSecs),
		Gate:           secs(pc.GateTimeoutSecs),
		Link:           secs(pc.LinkTimeoutSecs),
		LinkClick:      secs(pc.LinkClickTimeoutSecs),
		TabLoad:        secs(pc.TabLoadTimeoutSecs),
		Additional:     secs(pc.AdditionalTimeoutSecs),
		AdditionalLoad: secs(pc.AdditionalLoadTimeoutSecs),
		Field:          secs(pc.FieldTimeoutSecs),
	}
}

// newPipeline builds the SAFER pipeline from the locator profile.
func newPipeline(pc config.PipelineConfig) (*safer.Pipeline, error) {
	loc := safer.DefaultLocators()
	if pc.LocatorsPath != "" {
		var err error
		if loc, err = safer.LoadLocators(pc.LocatorsPath); err != nil {
			return nil, err
		}
	}
	if pc.SnapshotURL != "" {
		loc.SnapshotURL = pc.SnapshotURL
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return safer.NewPipeline(loc, pipelineTimeouts(pc)), nil
}

func batchConfig() batch.Config {
	return batch.Config{
		ArtifactDir:          cfg.Batch.ArtifactDir,
		MaxConsecutiveErrors: cfg.Batch.MaxConsecutiveErrors,
	}
}

// openSinks opens the CSV sink and, when xlsxPath is set, an XLSX sink
// alongside it.
func openSinks(csvPath, xlsxPath string) (sink.Sink, error) {
	csvSink, err := sink.NewCSV(csvPath)
	if err != nil {
		return nil, err
	}
	if xlsxPath == "" {
		return csvSink, nil
	}
	xlsxSink, err := sink.NewXLSX(xlsxPath)
	if err != nil {
		csvSink.Close() //nolint:errcheck
		return nil, err
	}
	return sink.Multi(csvSink, xlsxSink), nil
}

// lockOutput takes an exclusive lock next to the output file so two runs
// never write the same CSV.
func lockOutput(path string) (func(), error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "lock output %s", path)
	}
	if !ok {
		return nil, eris.Errorf("output %s is in use by another run", path)
	}
	return func() { _ = lock.Unlock() }, nil
}
