// Package gooffline provides a public Go API for resolving a project's
// dependencies and build plugins into a local repository.
//
// This package exposes the gooffline resolution pipeline as a library,
// allowing programmatic use without the CLI.
//
// Basic usage:
//
//	result, err := gooffline.Resolve(ctx, "path/to/project")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range result.Failures {
//	    fmt.Println("unresolved:", f.Coordinate)
//	}
//
// With options:
//
//	result, err := gooffline.Resolve(ctx, "path/to/project",
//	    gooffline.WithLocalRepository("/var/cache/m2"),
//	    gooffline.WithExcludeScopes("test", "provided"),
//	    gooffline.WithWorkers(8),
//	)
package gooffline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/gooffline/internal/config"
	"github.com/hupe1980/gooffline/internal/filter"
	"github.com/hupe1980/gooffline/internal/logging"
	"github.com/hupe1980/gooffline/internal/manifest"
	"github.com/hupe1980/gooffline/internal/project"
	"github.com/hupe1980/gooffline/internal/repository"
	"github.com/hupe1980/gooffline/internal/resolve"
)

// ErrInvalidFilterValue is returned when a filter list holds a value that
// can never match, such as an unknown scope.
var ErrInvalidFilterValue = filter.ErrInvalidValue

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Option configures the resolution pipeline.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	filters         filter.Options
	localRepository string
	workers         int
	transitive      bool
	includeParents  bool
	httpTimeout     time.Duration
	s3              repository.S3Options
	logger          *slog.Logger
}

// --- Filtering ---

// WithIncludeArtifactIDs keeps only dependencies with these artifactIds.
func WithIncludeArtifactIDs(ids ...string) Option {
	return func(o *options) { o.filters.IncludeArtifactIDs = ids }
}

// WithExcludeArtifactIDs drops dependencies with these artifactIds.
func WithExcludeArtifactIDs(ids ...string) Option {
	return func(o *options) { o.filters.ExcludeArtifactIDs = ids }
}

// WithIncludeGroupIDs keeps only dependencies with these groupIds.
func WithIncludeGroupIDs(ids ...string) Option {
	return func(o *options) { o.filters.IncludeGroupIDs = ids }
}

// WithExcludeGroupIDs drops dependencies with these groupIds.
func WithExcludeGroupIDs(ids ...string) Option {
	return func(o *options) { o.filters.ExcludeGroupIDs = ids }
}

// WithIncludeScopes keeps only dependencies in these scopes.
func WithIncludeScopes(scopes ...string) Option {
	return func(o *options) { o.filters.IncludeScopes = scopes }
}

// WithExcludeScopes drops dependencies in these scopes.
func WithExcludeScopes(scopes ...string) Option {
	return func(o *options) { o.filters.ExcludeScopes = scopes }
}

// WithIncludeClassifiers keeps only dependencies with these classifiers.
func WithIncludeClassifiers(classifiers ...string) Option {
	return func(o *options) { o.filters.IncludeClassifiers = classifiers }
}

// WithExcludeClassifiers drops dependencies with these classifiers.
func WithExcludeClassifiers(classifiers ...string) Option {
	return func(o *options) { o.filters.ExcludeClassifiers = classifiers }
}

// WithIncludeTypes keeps only dependencies of these types.
func WithIncludeTypes(types ...string) Option {
	return func(o *options) { o.filters.IncludeTypes = types }
}

// WithExcludeTypes drops dependencies of these types.
func WithExcludeTypes(types ...string) Option {
	return func(o *options) { o.filters.ExcludeTypes = types }
}

// WithReactorModules resolves artifacts produced by modules of the same
// build instead of skipping them.
func WithReactorModules() Option { return func(o *options) { o.filters.ExcludeReactor = false } }

// --- Resolution ---

// WithLocalRepository sets the local repository (default: ~/.m2/repository).
func WithLocalRepository(dir string) Option { return func(o *options) { o.localRepository = dir } }

// WithWorkers bounds concurrent resolutions per batch (default: 4).
func WithWorkers(n int) Option { return func(o *options) { o.workers = n } }

// WithoutTransitive resolves declared coordinates only.
func WithoutTransitive() Option { return func(o *options) { o.transitive = false } }

// WithParents also resolves the parent POM chain of every artifact.
func WithParents() Option { return func(o *options) { o.includeParents = true } }

// WithHTTPTimeout bounds a single repository request (default: 60s).
func WithHTTPTimeout(d time.Duration) Option { return func(o *options) { o.httpTimeout = d } }

// WithS3 configures access to s3:// repositories.
func WithS3(endpoint, region string, insecure bool) Option {
	return func(o *options) {
		o.s3 = repository.S3Options{Endpoint: endpoint, Region: region, Insecure: insecure}
	}
}

// WithLogger receives warnings for unresolved coordinates. Logs are
// discarded by default.
func WithLogger(logger *slog.Logger) Option { return func(o *options) { o.logger = logger } }

// Failure is a coordinate that could not be resolved.
type Failure struct {
	Project    string
	Batch      string
	Coordinate string
	Err        error
}

// Result is the outcome of a resolution run over a whole reactor.
type Result struct {
	// Manifest lists every resolved artifact and failure, sorted.
	Manifest *manifest.Manifest

	// ManifestYAML is the serialized manifest.
	ManifestYAML []byte

	// Failures are the coordinates that could not be resolved.
	Failures []Failure
}

// Resolve resolves every module of the reactor rooted at dir into the
// local repository. Per-coordinate failures are reported in the Result;
// the error is non-nil only when resolution could not be carried out.
func Resolve(ctx context.Context, dir string, opts ...Option) (*Result, error) {
	if dir == "" {
		return nil, errors.New("project directory must not be empty")
	}

	o := &options{
		filters:         filter.Options{ExcludeReactor: true},
		localRepository: config.DefaultLocalRepository(),
		workers:         config.DefaultWorkers,
		transitive:      true,
		httpTimeout:     config.DefaultHTTPTimeout,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = discardLogger()
	}

	ctx = logging.NewContext(ctx, o.logger)

	// 1. Load the reactor.
	reactor, err := project.LoadReactor(dir)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}

	// 2. Build the filter chain.
	o.filters.ReactorModules = reactor.Modules()

	chain, reactorFilter, err := filter.BuildChain(o.filters)
	if err != nil {
		return nil, err
	}

	// 3. Open the repository session.
	httpTransport, err := repository.NewHTTPTransport(repository.HTTPOptions{Timeout: o.httpTimeout})
	if err != nil {
		return nil, err
	}

	session, err := repository.NewSession(
		repository.NewMultiTransport(httpTransport, repository.NewS3Transport(o.s3)),
		repository.Options{
			LocalRepository: o.localRepository,
			Transitive:      o.transitive,
			IncludeParents:  o.includeParents,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("opening local repository: %w", err)
	}

	// 4. Resolve each module in build order.
	batches := resolve.NewBatchResolver(o.workers)
	builder := manifest.NewBuilder(session.LocalRepository())
	result := &Result{}

	for _, proj := range reactor.Projects {
		p := &resolve.Pipeline{
			Filters:           chain,
			Resolver:          batches,
			DependencyContext: session.Context(repository.FromProject(proj.DependencyRepositories())),
			PluginContext:     session.Context(repository.FromProject(proj.PluginRepositoryList())),
		}

		if reactorFilter != nil {
			p.PostFilter = reactorFilter
		}

		res, runErr := p.Run(ctx, proj)
		if runErr != nil {
			return nil, fmt.Errorf("resolving %s: %w", proj.ID(), runErr)
		}

		builder.Add(proj.ID(), res)

		for _, batch := range []*resolve.BatchResult{res.Plugins, res.Dependencies} {
			for _, f := range batch.Failures {
				result.Failures = append(result.Failures, Failure{
					Project:    proj.ID(),
					Batch:      batch.Name,
					Coordinate: f.Coordinate.String(),
					Err:        f.Err,
				})
			}
		}
	}

	// 5. Serialize the manifest.
	result.Manifest = builder.Build()

	result.ManifestYAML, err = manifest.Marshal(result.Manifest)
	if err != nil {
		return nil, err
	}

	return result, nil
}
