// Package source defines the evidence collector interface and the concurrent
// fan-out that queries every source for a provider record. Collectors never
// surface errors to callers of Collect; every outcome is folded into an
// EvidenceResult so one bad source cannot sink a validation run.
package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/health-atlas/atlas-cli/internal/model"
)

// ErrNotFound is returned by a collector when the source answered but holds
// no record for the provider.
var ErrNotFound = eris.New("source: record not found")

// ErrInvalidResponse is returned when the source answered with a payload the
// client could not interpret.
var ErrInvalidResponse = eris.New("source: invalid response")

// Collector queries a single evidence source for one provider record.
type Collector interface {
	// Source identifies which evidence source this collector queries.
	Source() model.Source

	// Lookup fetches evidence for the provider. On success the returned
	// EvidenceResult carries the source payload and a confidence value.
	// A non-nil error is classified by Collect into a failure result.
	Lookup(ctx context.Context, p model.NormalizedProvider) (model.EvidenceResult, error)
}

// Set holds one collector per evidence source.
type Set struct {
	Identity  Collector
	License   Collector
	Address   Collector
	Exclusion Collector
	Web       Collector
}

// All returns the collectors in source priority order.
func (s Set) All() []Collector {
	return []Collector{s.Identity, s.License, s.Address, s.Exclusion, s.Web}
}
