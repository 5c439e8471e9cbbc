package resolve

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/gooffline/internal/coord"
	"github.com/hupe1980/gooffline/internal/filter"
	"github.com/hupe1980/gooffline/internal/logging"
	"github.com/hupe1980/gooffline/internal/project"
	"github.com/hupe1980/gooffline/internal/repository"
)

// Batch names.
const (
	BatchDependencies = "dependencies"
	BatchPlugins      = "plugins"
)

// Pipeline runs the dependency and plugin batches of a project.
type Pipeline struct {
	// Filters narrows the declared dependencies. Nil keeps all of them.
	Filters *filter.Chain
	// Resolver runs both batches.
	Resolver *BatchResolver
	// DependencyContext resolves the dependency batch.
	DependencyContext repository.Context
	// PluginContext resolves the plugin batch.
	PluginContext repository.Context
	// PostFilter is applied to everything either batch would yield.
	PostFilter repository.ArtifactFilter
}

// Result holds both batches separately.
type Result struct {
	Dependencies *BatchResult
	Plugins      *BatchResult
	// Excluded lists the declared dependencies the chain removed.
	Excluded []filter.ExcludedDependency
}

// DependencyArtifacts returns a copy of the resolved dependency set, sorted
// by coordinate.
func (r *Result) DependencyArtifacts() []repository.Artifact {
	return r.Dependencies.Artifacts.Artifacts()
}

// PluginArtifacts returns a copy of the resolved plugin set, sorted by
// coordinate.
func (r *Result) PluginArtifacts() []repository.Artifact {
	return r.Plugins.Artifacts.Artifacts()
}

// Failures returns the failures of both batches, plugins first.
func (r *Result) Failures() []Failure {
	out := make([]Failure, 0, len(r.Plugins.Failures)+len(r.Dependencies.Failures))
	out = append(out, r.Plugins.Failures...)

	return append(out, r.Dependencies.Failures...)
}

// Failed reports whether any coordinate of either batch failed.
func (r *Result) Failed() bool {
	return r.Dependencies.Failed() || r.Plugins.Failed()
}

// DependencyCoordinates filters the project's declared dependencies through
// chain and extracts their coordinates.
func DependencyCoordinates(p *project.Project, chain *filter.Chain) ([]coord.Coordinate, []filter.ExcludedDependency) {
	if chain == nil {
		chain = filter.NewChain()
	}

	res := chain.Apply(p.Dependencies)

	return coord.FromDependencies(res.Included), res.Excluded
}

// PluginCoordinates returns the report artifacts followed by the plugin
// artifacts, deduplicated in that order. They are not filtered.
func PluginCoordinates(p *project.Project) []coord.Coordinate {
	artifacts := make([]project.Artifact, 0, len(p.Reports)+len(p.Plugins))
	artifacts = append(artifacts, p.Reports...)
	artifacts = append(artifacts, p.Plugins...)

	return coord.FromArtifacts(artifacts)
}

// Run resolves both batches concurrently. Per-coordinate failures are
// contained in the batch results; only systemic errors are returned.
func (p *Pipeline) Run(ctx context.Context, proj *project.Project) (*Result, error) {
	if p.Resolver == nil || p.DependencyContext == nil || p.PluginContext == nil {
		return nil, errors.New("pipeline requires a resolver and both repository contexts")
	}

	ctx, span := tracer.Start(ctx, "resolve.pipeline")
	defer span.End()

	ctx, logger := logging.WithProject(ctx, proj.ID())

	deps, excluded := DependencyCoordinates(proj, p.Filters)
	plugins := PluginCoordinates(proj)

	for _, e := range excluded {
		logger.Debug("dependency excluded", "dependency", e.Dependency.String(), "reason", e.Reason)
	}

	result := &Result{Excluded: excluded}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := p.Resolver.Resolve(gctx, BatchPlugins, plugins, p.PluginContext, p.PostFilter)
		result.Plugins = r

		return err
	})

	g.Go(func() error {
		r, err := p.Resolver.Resolve(gctx, BatchDependencies, deps, p.DependencyContext, p.PostFilter)
		result.Dependencies = r

		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return result, nil
}
