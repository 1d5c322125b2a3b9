package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/visiprobe/visiprobe/internal/ailink"
	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/parser"
	"github.com/visiprobe/visiprobe/internal/core/scoring"
)

const tracerName = "github.com/visiprobe/visiprobe/internal/core/engine"

// DefaultPlatformTimeout bounds one platform query.
const DefaultPlatformTimeout = 30 * time.Second

// EmitFunc delivers one event to the caller. Returning an error stops the scan.
type EmitFunc func(core.Event) error

// BusinessDiscoverer infers the profile for a domain and never fails.
type BusinessDiscoverer interface {
	Discover(ctx context.Context, host string) core.BusinessProfile
}

// Options tune a scan.
type Options struct {
	PlatformTimeout   time.Duration
	Parallel          bool
	MaxConcurrency    int
	AnnounceDiscovery bool
	ExcerptLength     int
}

// Orchestrator runs one scan: discovery, then every platform in order.
type Orchestrator struct {
	Provider   ailink.CompletionProvider
	Discoverer BusinessDiscoverer
	Prompts    *PromptBuilder
	Scorer     *scoring.Engine
	Platforms  []core.PlatformSpec
	Options    Options
	Recorder   Recorder
	Logger     *zap.Logger
}

// Run scans host and returns the terminal event, which is also emitted.
// Per-platform failures become error results and never fail the scan. Run
// stops and returns an error only when ctx ends or emit fails.
func (o *Orchestrator) Run(ctx context.Context, host string, emit EmitFunc) (*core.Complete, error) {
	if o == nil || o.Provider == nil || o.Discoverer == nil {
		return nil, fmt.Errorf("orchestrator not configured")
	}
	if emit == nil {
		emit = func(core.Event) error { return nil }
	}

	platforms := o.platforms()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scan.run", trace.WithAttributes(
		attribute.String("scan.domain", host),
		attribute.Int("scan.platforms", len(platforms)),
		attribute.Bool("scan.parallel", o.Options.Parallel),
	))
	defer span.End()

	start := time.Now()
	recorder := o.recorder()
	recorder.ScanStarted()
	logger := o.logger().With(zap.String("domain", host))

	if o.Options.AnnounceDiscovery {
		if err := emit(core.Scanning{PlatformID: core.DiscoveryPlatformID, PlatformName: core.DiscoveryLabel}); err != nil {
			return nil, o.abort(span, logger, err)
		}
	}

	profile := o.Discoverer.Discover(ctx, host)
	if err := ctx.Err(); err != nil {
		return nil, o.abort(span, logger, err)
	}

	var (
		results []core.PlatformResult
		err     error
	)
	if o.Options.Parallel {
		results, err = o.runParallel(ctx, profile, host, platforms, emit)
	} else {
		results, err = o.runSequential(ctx, profile, host, platforms, emit)
	}
	if err != nil {
		return nil, o.abort(span, logger, err)
	}

	complete := &core.Complete{Total: len(platforms), Domain: host, Results: results}
	for _, result := range results {
		if result.Found {
			complete.Score++
		}
	}

	if err := emit(*complete); err != nil {
		return nil, o.abort(span, logger, err)
	}

	elapsed := time.Since(start)
	recorder.ScanFinished(complete.Score, complete.Total, elapsed)
	span.SetAttributes(attribute.Int("scan.score", complete.Score))
	logger.Info("scan complete",
		zap.Int("score", complete.Score),
		zap.Int("total", complete.Total),
		zap.Duration("elapsed", elapsed),
	)
	return complete, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, profile core.BusinessProfile, host string, platforms []core.PlatformSpec, emit EmitFunc) ([]core.PlatformResult, error) {
	results := make([]core.PlatformResult, 0, len(platforms))
	for _, platform := range platforms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := emit(core.Scanning{PlatformID: platform.ID, PlatformName: platform.DisplayName}); err != nil {
			return nil, err
		}

		result := o.queryPlatform(ctx, profile, host, platform)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := emit(result); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// runParallel queries platforms concurrently but emits in platform order:
// platform i's scanning and result events both precede platform i+1's.
func (o *Orchestrator) runParallel(ctx context.Context, profile core.BusinessProfile, host string, platforms []core.PlatformSpec, emit EmitFunc) ([]core.PlatformResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]core.PlatformResult, len(platforms))
	done := make([]chan struct{}, len(platforms))
	for i := range done {
		done[i] = make(chan struct{})
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency(len(platforms)))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i, platform := range platforms {
			g.Go(func() error {
				defer close(done[i])
				if gCtx.Err() != nil {
					return nil
				}
				slots[i] = o.queryPlatform(gCtx, profile, host, platform)
				return nil
			})
		}
		_ = g.Wait()
	}()
	defer func() {
		cancel()
		<-finished
	}()

	results := make([]core.PlatformResult, 0, len(platforms))
	for i, platform := range platforms {
		if err := emit(core.Scanning{PlatformID: platform.ID, PlatformName: platform.DisplayName}); err != nil {
			return nil, err
		}
		select {
		case <-done[i]:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := emit(slots[i]); err != nil {
			return nil, err
		}
		results = append(results, slots[i])
	}
	return results, nil
}

func (o *Orchestrator) queryPlatform(ctx context.Context, profile core.BusinessProfile, host string, platform core.PlatformSpec) core.PlatformResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scan.platform", trace.WithAttributes(
		attribute.String("platform.id", platform.ID),
		attribute.String("platform.model", platform.Model),
		attribute.String("platform.kind", string(platform.Kind)),
	))
	defer span.End()

	start := time.Now()
	logger := o.logger().With(zap.String("domain", host), zap.String("platform", platform.ID))

	fail := func(stage string, err error) core.PlatformResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		logger.Warn("platform check failed",
			zap.String("stage", stage),
			zap.String("model", platform.Model),
			zap.String("code", ailink.CodeOf(err)),
			zap.Error(err),
		)
		o.recorder().PlatformFinished(platform.ID, core.ScanStatusError, false, time.Since(start))
		return core.NewPlatformError(platform)
	}

	text, err := o.Prompts.Build(profile, host, platform.Kind)
	if err != nil {
		return fail("prompt", err)
	}

	raw, err := o.Provider.Complete(ailink.WithPromptSlug(ctx, SlugFor(platform.Kind)), platform.Model, text, o.platformTimeout())
	if err != nil {
		return fail("completion", err)
	}

	result := o.Evaluate(raw, profile, host)
	span.SetAttributes(
		attribute.Int("platform.visibility", result.Visibility),
		attribute.Bool("platform.found", result.Found),
	)
	elapsed := time.Since(start)
	o.recorder().PlatformFinished(platform.ID, core.ScanStatusComplete, result.Found, elapsed)
	logger.Debug("platform checked",
		zap.Int("visibility", result.Visibility),
		zap.Bool("found", result.Found),
		zap.Int("competitors", len(result.Competitors)),
		zap.Duration("elapsed", elapsed),
	)
	return core.NewPlatformResult(platform, result)
}

// Evaluate parses and scores one raw completion.
func (o *Orchestrator) Evaluate(raw string, profile core.BusinessProfile, host string) core.ScanResult {
	sections := parser.Split(raw)
	score := o.Scorer.Score(sections.Visibility, raw, profile.Name, host)
	return core.ScanResult{
		Found:       score.Found,
		Visibility:  score.Visibility,
		Excerpt:     parser.BuildExcerpt(sections.Visibility, o.Options.ExcerptLength),
		Competitors: parser.ParseCompetitors(sections.Competitors, profile.Name, host),
	}
}

func (o *Orchestrator) abort(span trace.Span, logger *zap.Logger, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "scan aborted")
	logger.Debug("scan aborted", zap.Error(err))
	return err
}

func (o *Orchestrator) platforms() []core.PlatformSpec {
	if len(o.Platforms) == 0 {
		return core.Platforms()
	}
	platforms := make([]core.PlatformSpec, 0, len(o.Platforms))
	for _, p := range o.Platforms {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Model) == "" {
			continue
		}
		if strings.TrimSpace(p.DisplayName) == "" {
			p.DisplayName = p.ID
		}
		platforms = append(platforms, p)
	}
	return platforms
}

func (o *Orchestrator) platformTimeout() time.Duration {
	if o.Options.PlatformTimeout > 0 {
		return o.Options.PlatformTimeout
	}
	return DefaultPlatformTimeout
}

func (o *Orchestrator) maxConcurrency(n int) int {
	limit := o.Options.MaxConcurrency
	if limit <= 0 || limit > n {
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

func (o *Orchestrator) recorder() Recorder {
	if o.Recorder == nil {
		return nopRecorder{}
	}
	return o.Recorder
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
