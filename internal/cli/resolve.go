package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gooffline/internal/config"
	"github.com/hupe1980/gooffline/internal/logging"
	"github.com/hupe1980/gooffline/internal/tracing"
)

func newResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resolve [project-dir]",
		Aliases: []string{"go-offline"},
		Short:   "Resolve all dependencies and plugins into the local repository",
		Long: `Resolve reads the gooffline.yaml descriptor in project-dir (default:
the current directory) and every module it lists, then downloads each
module's declared dependencies and its plugins and reports into the local
repository so that later builds can run offline.

Dependencies pass through the include/exclude filters; plugins and reports
do not. A coordinate that cannot be resolved is logged as a warning and the
run continues. Use --strict to turn such partial results into exit code 3.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProjectDir,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			return runResolve(cmd.Context(), cmd, dir)
		},
	}

	registerResolveFlags(cmd)

	return cmd
}

func runResolve(ctx context.Context, cmd *cobra.Command, dir string) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	tp, err := tracing.NewProvider(tracing.Config{FilePath: cfg.TraceFile})
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("configuring tracing: %w", err)}
	}

	defer func() {
		if shutdownErr := tp.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.Warn("flushing traces", slog.String("error", shutdownErr.Error()))
		}
	}()

	session, err := newSession(cfg)
	if err != nil {
		return err
	}

	result, err := runPipeline(ctx, dir, cfg, session, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	deps, plugins, failed := result.Counts()
	logger.Info("offline resolution complete",
		slog.Int("projects", len(result.Projects)),
		slog.Int("dependencies", deps),
		slog.Int("plugins", plugins),
		slog.Int("failed", failed),
	)

	if cfg.Strict && result.Failed() {
		return &ExitError{Code: 3, Err: fmt.Errorf("%d coordinate(s) could not be resolved", failed)}
	}

	return nil
}
