package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/health-atlas/atlas-cli/internal/model"
	"github.com/health-atlas/atlas-cli/internal/resilience"
)

// CollectOptions tunes a Collect call.
type CollectOptions struct {
	// Timeout bounds each individual source lookup. Zero means 10s.
	Timeout time.Duration
}

const defaultLookupTimeout = 10 * time.Second

// Collect fans out to every collector in the set concurrently and waits for
// all of them. Each lookup gets its own timeout, so the wall-clock cost of a
// run is bounded by the slowest single source rather than the sum. Collect
// never returns an error: failures, timeouts, and panics inside a collector
// all become failure-status EvidenceResults.
func Collect(ctx context.Context, set Set, p model.NormalizedProvider, opts CollectOptions) (model.EvidenceSet, model.ExecutionMetadata) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}

	started := time.Now()
	meta := model.ExecutionMetadata{
		Sources:   make(map[model.Source]model.SourceExecution, 5),
		StartedAt: started.UTC(),
	}

	results := make([]model.EvidenceResult, len(model.SourcePriority))
	execs := make([]model.SourceExecution, len(model.SourcePriority))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range set.All() {
		g.Go(func() error {
			results[i], execs[i] = lookupOne(gctx, c, p, timeout)
			return nil
		})
	}
	// Workers only write disjoint slots and never return errors.
	_ = g.Wait()

	var set2 model.EvidenceSet
	for i, res := range results {
		meta.Sources[res.Source] = execs[i]
		switch res.Source {
		case model.SourceIdentityRegistry:
			set2.Identity = res
		case model.SourceLicenseBoard:
			set2.License = res
		case model.SourceAddress:
			set2.Address = res
		case model.SourceExclusionList:
			set2.Exclusion = res
		case model.SourceWebEnrichment:
			set2.Web = res
		}
	}
	meta.DurationMS = time.Since(started).Milliseconds()
	return set2, meta
}

// lookupOne runs a single collector with its own deadline and converts every
// failure mode, including a panic inside the collector, into a failure result.
func lookupOne(ctx context.Context, c Collector, p model.NormalizedProvider, timeout time.Duration) (res model.EvidenceResult, exec model.SourceExecution) {
	src := c.Source()
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("collector panicked",
				zap.String("source", string(src)),
				zap.Any("panic", r))
			res = model.FailureResult(src, model.StatusFailed, model.ReasonInvalidResponse,
				fmt.Sprintf("collector panic: %v", r))
		}
		exec = model.SourceExecution{
			Source:     src,
			Status:     res.Status,
			LatencyMS:  time.Since(started).Milliseconds(),
			Confidence: res.Confidence,
			Error:      res.Error,
		}
	}()

	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.Lookup(lctx, p)
	if err != nil {
		return classifyFailure(src, err), exec
	}
	result.Source = src
	result.Status = model.StatusOK
	return result, exec
}

// classifyFailure maps a lookup error onto the closed set of failure reasons.
func classifyFailure(src model.Source, err error) model.EvidenceResult {
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return model.FailureResult(src, model.StatusTimeout, model.ReasonTimeout, msg)
	case errors.Is(err, ErrNotFound):
		return model.FailureResult(src, model.StatusFailed, model.ReasonNotFound, msg)
	case errors.Is(err, resilience.ErrBreakerOpen), resilience.IsTransient(err):
		return model.FailureResult(src, model.StatusFailed, model.ReasonTransportError, msg)
	default:
		return model.FailureResult(src, model.StatusFailed, model.ReasonInvalidResponse, msg)
	}
}
