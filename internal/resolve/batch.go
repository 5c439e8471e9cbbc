// Package resolve runs coordinate batches against a repository context,
// containing per-coordinate failures so one bad coordinate never aborts the
// rest of the batch.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/gooffline/internal/coord"
	"github.com/hupe1980/gooffline/internal/logging"
	"github.com/hupe1980/gooffline/internal/repository"
)

// DefaultWorkers is the batch concurrency when none is configured.
const DefaultWorkers = 4

var tracer = otel.Tracer("github.com/hupe1980/gooffline/internal/resolve")

// ArtifactSet holds resolved artifacts keyed by coordinate.
type ArtifactSet struct {
	m map[coord.Coordinate]repository.Artifact
}

// NewArtifactSet creates an empty set.
func NewArtifactSet() *ArtifactSet {
	return &ArtifactSet{m: make(map[coord.Coordinate]repository.Artifact)}
}

// Add inserts a and reports whether its coordinate was new. The first
// artifact stored for a coordinate is kept.
func (s *ArtifactSet) Add(a repository.Artifact) bool {
	if _, ok := s.m[a.Coordinate]; ok {
		return false
	}

	s.m[a.Coordinate] = a

	return true
}

// Contains reports whether c has been resolved.
func (s *ArtifactSet) Contains(c coord.Coordinate) bool {
	_, ok := s.m[c]
	return ok
}

// Len returns the number of distinct coordinates.
func (s *ArtifactSet) Len() int {
	return len(s.m)
}

// Artifacts returns the artifacts sorted by coordinate string.
func (s *ArtifactSet) Artifacts() []repository.Artifact {
	out := make([]repository.Artifact, 0, len(s.m))
	for _, a := range s.m {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Coordinate.String() < out[j].Coordinate.String()
	})

	return out
}

// Coordinates returns the coordinates sorted by string form.
func (s *ArtifactSet) Coordinates() []coord.Coordinate {
	out := make([]coord.Coordinate, 0, len(s.m))
	for c := range s.m {
		out = append(out, c)
	}

	coord.Sort(out)

	return out
}

// Outcome is the result of resolving one coordinate of a batch.
type Outcome struct {
	Coordinate coord.Coordinate
	Artifacts  []repository.Artifact
	// Err is a *repository.ResolutionError when the coordinate failed.
	Err error
}

// Failed reports whether the coordinate could not be resolved.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Failure records a coordinate that was skipped.
type Failure struct {
	Coordinate coord.Coordinate
	Err        error
}

// BatchResult holds everything a batch produced.
type BatchResult struct {
	// Name is "dependencies" or "plugins".
	Name string
	// Artifacts is the union of every successful outcome.
	Artifacts *ArtifactSet
	// Outcomes has one entry per input coordinate, in input order.
	Outcomes []Outcome
	// Failures lists the failed coordinates in input order.
	Failures []Failure
}

// Failed reports whether any coordinate failed.
func (r *BatchResult) Failed() bool {
	return len(r.Failures) > 0
}

// BatchResolver resolves coordinate batches with bounded concurrency.
type BatchResolver struct {
	workers int
}

// NewBatchResolver creates a resolver running up to workers coordinates at
// once. Non-positive values select DefaultWorkers.
func NewBatchResolver(workers int) *BatchResolver {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &BatchResolver{workers: workers}
}

// Workers returns the concurrency limit.
func (b *BatchResolver) Workers() int {
	return b.workers
}

// Resolve resolves every coordinate independently. Per-coordinate failures
// are logged as warnings and recorded in the result; they never abort the
// batch. Any other error is systemic and is returned.
func (b *BatchResolver) Resolve(
	ctx context.Context,
	name string,
	coords []coord.Coordinate,
	repoCtx repository.Context,
	filter repository.ArtifactFilter,
) (*BatchResult, error) {
	ctx, span := tracer.Start(ctx, "resolve.batch", trace.WithAttributes(
		attribute.String("batch", name),
		attribute.Int("coordinates", len(coords)),
	))
	defer span.End()

	ctx, logger := logging.WithBatch(ctx, name)

	logger.Debug("resolving with repositories", slog.Int("count", len(repoCtx.Repositories())))

	for _, repo := range repoCtx.Repositories() {
		logger.Debug("repository", slog.String("id", repo.ID), slog.String("url", repo.URL))
	}

	outcomes := make([]Outcome, len(coords))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, c := range coords {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("resolving %s: %w", name, err)
			}

			artifacts, err := repoCtx.Resolve(gctx, c, filter)
			if err != nil && !repository.IsResolutionError(err) {
				return fmt.Errorf("resolving %s for %s: %w", name, c, err)
			}

			outcomes[i] = Outcome{Coordinate: c, Artifacts: artifacts, Err: err}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	result := &BatchResult{
		Name:      name,
		Artifacts: NewArtifactSet(),
		Outcomes:  outcomes,
	}

	for _, o := range outcomes {
		if o.Failed() {
			logger.Warn("failed to resolve", slog.String("coordinate", o.Coordinate.String()), slog.Any("error", o.Err))
			result.Failures = append(result.Failures, Failure{Coordinate: o.Coordinate, Err: o.Err})

			continue
		}

		for _, a := range o.Artifacts {
			result.Artifacts.Add(a)
		}
	}

	span.SetAttributes(
		attribute.Int("artifacts", result.Artifacts.Len()),
		attribute.Int("failures", len(result.Failures)),
	)

	return result, nil
}
