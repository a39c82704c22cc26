package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/chat"
	"github.com/sells-group/provider-cli/internal/config"
	"github.com/sells-group/provider-cli/internal/enrich"
	"github.com/sells-group/provider-cli/internal/fetcher"
	"github.com/sells-group/provider-cli/internal/ingest"
	"github.com/sells-group/provider-cli/internal/jobs"
	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/normalize"
	"github.com/sells-group/provider-cli/internal/ocr"
	"github.com/sells-group/provider-cli/internal/oracle"
	"github.com/sells-group/provider-cli/internal/pipeline"
	"github.com/sells-group/provider-cli/internal/resilience"
	"github.com/sells-group/provider-cli/internal/review"
	"github.com/sells-group/provider-cli/internal/scorer"
	"github.com/sells-group/provider-cli/internal/store"
	"github.com/sells-group/provider-cli/internal/validate"
	"github.com/sells-group/provider-cli/pkg/notion"
	"github.com/sells-group/provider-cli/pkg/npi"
)

// appEnv holds the store and the job runner built from configuration.
type appEnv struct {
	Store  store.Store
	Oracle oracle.Oracle
	Runner *jobs.Runner
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Chat returns an assistant over the configured oracle.
func (e *appEnv) Chat() *chat.Assistant {
	return chat.New(e.Oracle)
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates configuration for mode and builds the store, oracle,
// ingestion loader, pipeline and runner. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	orc, err := oracle.New(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init oracle")
	}

	// Jobs submitted over the API may only read local files from the
	// upload directory. The run command reads any path it is given.
	var roots []string
	if mode != "run" {
		if err := os.MkdirAll(cfg.Jobs.UploadDir, 0o750); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "create upload dir")
		}
		roots = append(roots, cfg.Jobs.UploadDir)
	}

	loader, err := initLoader(orc, roots...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var opts []jobs.RunnerOption
	opts = append(opts, jobs.WithAccuracy(cfg.Report.Accuracy))
	if cfg.Notion.Token != "" && cfg.Notion.ReviewDB != "" {
		opts = append(opts, jobs.WithReviewer(review.New(notion.NewClient(cfg.Notion.Token), cfg.Notion.ReviewDB)))
		zap.L().Info("notion review sync enabled")
	} else {
		zap.L().Debug("PROVIDER_NOTION_TOKEN or review_db not set, review sync disabled")
	}

	runner := jobs.NewRunner(st, loader, initPipeline(orc, cfg), opts...)
	return &appEnv{Store: st, Oracle: orc, Runner: runner}, nil
}

// initPipeline wires the validators, enricher and scorer.
func initPipeline(orc oracle.Oracle, c *config.Config) *pipeline.Pipeline {
	npiClient := npi.NewClient(
		npi.WithBaseURL(c.Registry.BaseURL),
		npi.WithTimeout(c.Registry.Timeout()),
	)

	regOpts := []validate.RegistryOption{validate.WithRateLimit(c.Registry.RateLimit)}
	if c.Registry.Retries > 0 {
		regOpts = append(regOpts, validate.WithRetryPolicy(
			resilience.DefaultPolicy().WithAttempts(c.Registry.Retries).Logged(metrics.DependencyRegistry, "lookup"),
		))
	}
	registry := validate.NewRegistry(npiClient, regOpts...)

	presence := validate.NewPresence(
		validate.WithPresenceTimeout(c.Presence.Timeout()),
		validate.WithMaxBodyBytes(c.Presence.MaxBodyBytes),
		validate.WithUserAgent(c.Presence.UserAgent),
	)

	return pipeline.New(registry, presence, enrich.New(orc), scorer.New(c.Registry.ActiveCode),
		pipeline.WithConcurrency(c.Pipeline.Concurrency),
	)
}

// initLoader wires source resolution, OCR and normalization. When
// localRoots is non-empty, local sources outside those directories are
// refused.
func initLoader(orc oracle.Oracle, localRoots ...string) (*ingest.Loader, error) {
	rules, err := normalize.LoadRules(cfg.Normalize.RulesPath)
	if err != nil {
		return nil, eris.Wrap(err, "load normalize rules")
	}

	extractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		return nil, eris.Wrap(err, "init ocr")
	}

	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
	resolver := fetcher.NewResolver(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    timeout,
			MaxRetries: cfg.Fetch.MaxRetries,
		}),
		fetcher.NewFTPFetcher(timeout),
		"",
	)
	if len(localRoots) > 0 {
		resolver.RestrictLocal(localRoots...)
	}

	return ingest.NewLoader(resolver, normalize.New(rules, cfg.Pipeline.MaxRecords), orc, extractor,
		ingest.WithMaxChars(cfg.OCR.MaxChars),
		ingest.WithMaxRows(cfg.Pipeline.MaxRecords),
	), nil
}
