package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/gooffline/internal/config"
	"github.com/hupe1980/gooffline/internal/filter"
	"github.com/hupe1980/gooffline/internal/logging"
	"github.com/hupe1980/gooffline/internal/manifest"
	"github.com/hupe1980/gooffline/internal/project"
	"github.com/hupe1980/gooffline/internal/repository"
	"github.com/hupe1980/gooffline/internal/resolve"
)

// projectResult pairs a reactor module with its resolution result.
type projectResult struct {
	Project *project.Project
	Result  *resolve.Result
}

// pipelineResult holds the outputs of one offline resolution run.
type pipelineResult struct {
	Reactor  *project.Reactor
	Projects []projectResult
	Manifest *manifest.Manifest
	Diff     *manifest.DiffResult
}

// Counts returns the number of resolved dependencies, resolved plugins, and
// failed coordinates over all projects.
func (r *pipelineResult) Counts() (dependencies, plugins, failed int) {
	for _, pr := range r.Projects {
		dependencies += pr.Result.Dependencies.Artifacts.Len()
		plugins += pr.Result.Plugins.Artifacts.Len()
		failed += len(pr.Result.Failures())
	}

	return dependencies, plugins, failed
}

// Failed reports whether any coordinate of any project failed.
func (r *pipelineResult) Failed() bool {
	for _, pr := range r.Projects {
		if pr.Result.Failed() {
			return true
		}
	}

	return false
}

// newSession builds the transports and the repository session described by
// cfg.
func newSession(cfg *config.Config) (*repository.Session, error) {
	httpTransport, err := repository.NewHTTPTransport(repository.HTTPOptions{
		Timeout:  cfg.HTTPTimeout,
		CaFile:   cfg.CaFile,
		CertFile: cfg.CertFile,
		KeyFile:  cfg.KeyFile,
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Err: err}
	}

	s3Transport := repository.NewS3Transport(repository.S3Options{
		Endpoint: cfg.S3Endpoint,
		Region:   cfg.S3Region,
		Insecure: cfg.S3Insecure,
	})

	session, err := repository.NewSession(repository.NewMultiTransport(httpTransport, s3Transport), repository.Options{
		LocalRepository: cfg.LocalRepository,
		Transitive:      cfg.Transitive,
		IncludeParents:  cfg.IncludeParents,
		NegativeTTL:     cfg.NegativeCacheTTL,
	})
	if err != nil {
		return nil, &ExitError{Code: 1, Err: fmt.Errorf("opening local repository: %w", err)}
	}

	return session, nil
}

// filterOptions maps the configured filter lists onto filter.Options.
func filterOptions(cfg *config.Config, modules []project.Artifact) filter.Options {
	return filter.Options{
		IncludeArtifactIDs: cfg.IncludeArtifactIDs,
		ExcludeArtifactIDs: cfg.ExcludeArtifactIDs,
		IncludeGroupIDs:    cfg.IncludeGroupIDs,
		ExcludeGroupIDs:    cfg.ExcludeGroupIDs,
		IncludeScopes:      cfg.IncludeScopes,
		ExcludeScopes:      cfg.ExcludeScopes,
		IncludeClassifiers: cfg.IncludeClassifiers,
		ExcludeClassifiers: cfg.ExcludeClassifiers,
		IncludeTypes:       cfg.IncludeTypes,
		ExcludeTypes:       cfg.ExcludeTypes,
		ExcludeReactor:     cfg.ExcludeReactor,
		ReactorModules:     modules,
	}
}

// runPipeline resolves every module of the reactor rooted at dir and
// writes the manifest when one is configured. This is the shared core of
// the resolve and watch commands. Per-coordinate failures are reported in
// the result; returned errors are ExitErrors.
func runPipeline(ctx context.Context, dir string, cfg *config.Config, session *repository.Session, stdout io.Writer) (*pipelineResult, error) {
	logger := logging.FromContext(ctx)

	// 1. Load the reactor.
	reactor, err := project.LoadReactor(dir)
	if err != nil {
		return nil, &ExitError{Code: 1, Err: fmt.Errorf("loading project: %w", err)}
	}

	logger.Debug("reactor loaded", slog.Int("modules", len(reactor.Projects)))

	// 2. Build the filter chain. Malformed values fail before any resolution.
	chain, reactorFilter, err := filter.BuildChain(filterOptions(cfg, reactor.Modules()))
	if err != nil {
		if errors.Is(err, filter.ErrInvalidValue) {
			return nil, &ExitError{Code: 2, Err: err}
		}

		return nil, &ExitError{Code: 1, Err: err}
	}

	batches := resolve.NewBatchResolver(cfg.Workers)
	builder := manifest.NewBuilder(session.LocalRepository())
	result := &pipelineResult{Reactor: reactor}

	// 3. Resolve each module in build order.
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
			return nil, &ExitError{Code: 1, Err: fmt.Errorf("resolving %s: %w", proj.ID(), runErr)}
		}

		if !cfg.Silent {
			reportResolved(ctx, proj, res)
		}

		builder.Add(proj.ID(), res)
		result.Projects = append(result.Projects, projectResult{Project: proj, Result: res})
	}

	result.Manifest = builder.Build()

	// 4. Write the manifest.
	if cfg.Manifest != "" {
		if err := writeManifest(ctx, cfg, result, stdout); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// reportResolved logs one line per resolved artifact, plugins first.
func reportResolved(ctx context.Context, proj *project.Project, res *resolve.Result) {
	_, logger := logging.WithProject(ctx, proj.ID())

	for _, a := range res.PluginArtifacts() {
		logger.Info("resolved plugin", slog.String("artifact", a.Coordinate.String()))
	}

	for _, a := range res.DependencyArtifacts() {
		logger.Info("resolved dependency", slog.String("artifact", a.Coordinate.String()))
	}
}

// writeManifest serializes the manifest, diffs it against the previous file
// when requested, and writes it.
func writeManifest(ctx context.Context, cfg *config.Config, result *pipelineResult, stdout io.Writer) error {
	data, err := manifest.Marshal(result.Manifest)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	if cfg.Diff {
		previous, readErr := manifest.ReadPrevious(cfg.Manifest)
		if readErr != nil {
			return &ExitError{Code: 1, Err: readErr}
		}

		diff, diffErr := manifest.Diff(previous, data, manifest.DefaultDiffOptions())
		if diffErr != nil {
			return &ExitError{Code: 1, Err: diffErr}
		}

		result.Diff = diff
		manifest.WriteDiff(stdout, diff, !cfg.NoColor)
	}

	w := manifest.NewWriter(cfg.Manifest, stdout, logging.FromContext(ctx))
	if err := w.Write(data); err != nil {
		return &ExitError{Code: 6, Err: fmt.Errorf("writing manifest: %w", err)}
	}

	return nil
}
