package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/groster/groster/internal/alts"
	"github.com/groster/groster/internal/config"
	"github.com/groster/groster/internal/resilience"
	"github.com/groster/groster/internal/roster"
	"github.com/groster/groster/internal/store"
	"github.com/groster/groster/pkg/blizzard"
)

const sqliteFile = "groster.db"

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch sc.Driver {
	case "csv", "":
		st, err = store.NewCSV(sc.DataDir)
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			if err := os.MkdirAll(sc.DataDir, 0o755); err != nil {
				return nil, eris.Wrap(err, "create data dir")
			}
			dsn = filepath.Join(sc.DataDir, sqliteFile)
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initBlizzard(bc config.BlizzardConfig, region string) (blizzard.Client, error) {
	opts := []blizzard.Option{
		blizzard.WithLocale(bc.Locale),
		blizzard.WithRateLimit(bc.RateLimit),
		blizzard.WithRetry(resilience.FromRetryConfig(
			bc.MaxAttempts,
			time.Duration(bc.InitialBackoffMs)*time.Millisecond,
			time.Duration(bc.MaxBackoffMs)*time.Millisecond,
		)),
		blizzard.WithCircuitBreaker(resilience.FromCircuitConfig(
			bc.BreakerThreshold,
			time.Duration(bc.BreakerResetSecs)*time.Second,
		)),
	}
	if bc.TimeoutSecs > 0 {
		opts = append(opts, blizzard.WithHTTPClient(&http.Client{
			Timeout: time.Duration(bc.TimeoutSecs) * time.Second,
		}))
	}
	if bc.BaseURL != "" {
		opts = append(opts, blizzard.WithBaseURL(bc.BaseURL))
	}
	if bc.OAuthURL != "" {
		opts = append(opts, blizzard.WithOAuthURL(bc.OAuthURL))
	}
	return blizzard.NewClient(bc.ClientID, bc.ClientSecret, region, opts...)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, eris.Wrapf(err, "load timezone %q", name)
	}
	return loc, nil
}

// initService builds a roster service from the loaded config. client may be
// nil for offline recomputation.
func initService(c *config.Config, client blizzard.Client, st store.Store) (*roster.Service, error) {
	engine, err := alts.NewEngine(c.Alts)
	if err != nil {
		return nil, err
	}
	loc, err := loadLocation(c.Report.Timezone)
	if err != nil {
		return nil, err
	}

	opts := roster.Options{
		Concurrency: c.Blizzard.Concurrency,
		Location:    loc,
		XLSXPath:    c.Report.XLSXPath,
	}
	if c.Ranks.File != "" {
		overrides, err := roster.LoadRankOverrides(c.Ranks.File)
		if err != nil {
			return nil, err
		}
		opts.RankOverrides = overrides
	}
	return roster.NewService(client, st, engine, opts), nil
}
