package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gooffline/internal/config"
	"github.com/hupe1980/gooffline/internal/logging"
	"github.com/hupe1980/gooffline/internal/project"
	"github.com/hupe1980/gooffline/internal/tracing"
	"github.com/hupe1980/gooffline/internal/watch"
)

func newWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [project-dir]",
		Short: "Re-resolve whenever a module descriptor changes",
		Long: `Watch resolves the project once, then monitors the gooffline.yaml
descriptor of every module and re-runs resolution when one changes.

Changes are debounced to avoid rapid re-runs. Each run reports the number
of resolved dependencies and plugins and the number of failed coordinates.
Missing remote files are remembered for --negative-cache-ttl, so reruns do
not query remotes for them again.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProjectDir,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			return runWatch(cmd.Context(), cmd, dir, debounce)
		},
	}

	registerResolveFlags(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "debounce interval for descriptor changes")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, dir string, debounce time.Duration) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	reactor, err := project.LoadReactor(dir)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("loading project: %w", err)}
	}

	tp, err := tracing.NewProvider(tracing.Config{FilePath: cfg.TraceFile})
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("configuring tracing: %w", err)}
	}
	defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

	// One session for all runs keeps the caches warm.
	session, err := newSession(cfg)
	if err != nil {
		return err
	}

	runFn := func(fnCtx context.Context) (*watch.RunResult, error) {
		// Remote metadata may have changed since the previous run.
		session.Purge()

		result, runErr := runPipeline(fnCtx, dir, cfg, session, cmd.OutOrStdout())
		if runErr != nil {
			return nil, runErr
		}

		deps, plugins, failed := result.Counts()

		rr := &watch.RunResult{
			Projects:     len(result.Projects),
			Dependencies: deps,
			Plugins:      plugins,
			Failed:       failed,
			Dirs:         result.Reactor.Dirs(),
		}

		if result.Diff != nil {
			rr.ManifestAdded = result.Diff.Added
			rr.ManifestRemoved = result.Diff.Removed
		}

		return rr, nil
	}

	opts := watch.Options{
		Dirs:     reactor.Dirs(),
		Debounce: debounce,
		Logger:   logger,
		Out:      cmd.ErrOrStderr(),
	}

	return watch.Run(ctx, opts, runFn)
}
