// Package pipeline runs provider records through validation, presence
// checks, enrichment and scoring, producing one outcome per record.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/model"
)

// ReasonCancelled marks records that were never started because the run was
// cancelled.
const ReasonCancelled = "Cancelled"

// RegistryValidator checks a record against the provider registry.
type RegistryValidator interface {
	Validate(ctx context.Context, identifier, firstName, lastName string) model.ValidationOutcome
}

// PresenceValidator checks a claimed website.
type PresenceValidator interface {
	Validate(ctx context.Context, rawURL, expectedPhone string) model.PresenceOutcome
}

// Enricher adds best-effort attributes to a valid record.
type Enricher interface {
	Enrich(ctx context.Context, v model.ValidationOutcome) model.Enrichment
}

// Scorer computes the confidence score and issues.
type Scorer interface {
	Score(v model.ValidationOutcome, p *model.PresenceOutcome) (float64, []string)
}

// ProgressFunc receives progress as each record starts.
type ProgressFunc func(model.Progress)

// Pipeline orchestrates the per-record checks.
type Pipeline struct {
	registry    RegistryValidator
	presence    PresenceValidator
	enricher    Enricher
	scorer      Scorer
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds how many records are processed at once. Values
// below 1 mean strictly sequential.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New creates a Pipeline. A nil presence validator or enricher skips that
// step.
func New(registry RegistryValidator, presence PresenceValidator, enricher Enricher, scorer Scorer, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:    registry,
		presence:    presence,
		enricher:    enricher,
		scorer:      scorer,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes records and returns exactly one outcome per record, in input
// order. Progress is published when a record starts. A cancelled context
// stops new records from starting; those records get a Cancelled outcome.
func (p *Pipeline) Run(ctx context.Context, records []model.ProviderRecord, progress ProgressFunc) []model.RecordOutcome {
	outcomes := make([]model.RecordOutcome, len(records))
	total := len(records)
	start := time.Now()

	var (
		mu      sync.Mutex
		started int
	)
	begin := func(rec model.ProviderRecord) {
		mu.Lock()
		defer mu.Unlock()
		started++
		if progress != nil {
			progress(model.Progress{Current: started, Total: total, Provider: rec.DisplayName()})
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for i, rec := range records {
		if ctx.Err() != nil {
			outcomes[i] = p.failed(rec, ReasonCancelled)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = p.failed(rec, ReasonCancelled)
				return nil
			}
			begin(rec)
			outcomes[i] = p.process(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("pipeline: batch processed",
		zap.Int("records", total),
		zap.Int("started", started),
		zap.Duration("elapsed", time.Since(start)),
	)
	return outcomes
}

func (p *Pipeline) process(ctx context.Context, rec model.ProviderRecord) (out model.RecordOutcome) {
	log := zap.L().With(zap.String("identifier", rec.Identifier), zap.Int("index", rec.Index))

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: record panicked", zap.Any("panic", r))
			out = p.failed(rec, fmt.Sprintf("Internal error: %v", r))
		}
		metrics.RecordProcessed(string(out.Status))
	}()

	v := p.registry.Validate(ctx, rec.Identifier, rec.FirstName, rec.LastName)
	if v.Identifier == "" {
		v.Identifier = rec.Identifier
	}

	var presence *model.PresenceOutcome
	if rec.Website != "" && p.presence != nil {
		po := p.presence.Validate(ctx, rec.Website, rec.Phone)
		presence = &po
	}

	var enrichment *model.Enrichment
	if v.Valid && p.enricher != nil {
		e := p.enricher.Enrich(ctx, v)
		enrichment = &e
	}

	score, issues := p.scorer.Score(v, presence)
	out = model.RecordOutcome{
		Record:     rec,
		Validation: v,
		Presence:   presence,
		Enrichment: enrichment,
		Score:      score,
		Issues:     issues,
		Status:     model.StatusForScore(score),
	}

	log.Debug("pipeline: record scored",
		zap.Float64("score", score),
		zap.String("status", string(out.Status)),
		zap.Strings("issues", issues),
	)
	return out
}

// failed builds an invalid outcome for a record that could not be processed.
func (p *Pipeline) failed(rec model.ProviderRecord, reason string) model.RecordOutcome {
	v := model.InvalidValidation(reason)
	v.Identifier = rec.Identifier
	score, issues := p.scorer.Score(v, nil)
	return model.RecordOutcome{
		Record:     rec,
		Validation: v,
		Score:      score,
		Issues:     issues,
		Status:     model.StatusForScore(score),
	}
}
