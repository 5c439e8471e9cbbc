package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/gooffline/internal/project"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// RunFunc is called each time the watcher triggers a resolution run.
type RunFunc func(ctx context.Context) (*RunResult, error)

// RunResult summarizes a single resolution run.
type RunResult struct {
	Projects     int
	Dependencies int
	Plugins      int
	Failed       int

	// Dirs are the module directories of the reactor that was resolved.
	// Directories not yet watched are added after the run.
	Dirs []string

	// ManifestAdded and ManifestRemoved count changed manifest lines
	// relative to the previous run.
	ManifestAdded   int
	ManifestRemoved int
}

// Options configures the watch behaviour.
type Options struct {
	// Dirs are the module directories to watch initially.
	Dirs []string

	// Debounce is the quiet period before triggering a run.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out is the writer for user-facing status messages.
	Out io.Writer
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Debounce: DefaultDebounce,
		Logger:   slog.Default(),
		Out:      os.Stderr,
	}
}

// Run performs an initial resolution, then re-runs runFn on every
// descriptor change until ctx is cancelled or SIGINT/SIGTERM arrives.
func Run(ctx context.Context, opts Options, runFn RunFunc) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	set := newDirSet(watcher)
	if err := set.add(opts.Dirs); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(opts.Out, "watching %d module(s) (debounce=%s)\n", len(opts.Dirs), opts.Debounce)

	// Runs are serialized: the debouncer fires from its own goroutine.
	runs := make(chan string, 1)

	debouncer := NewDebouncer(opts.Debounce, func(path string, events int) {
		trigger := path
		if events > 1 {
			trigger = fmt.Sprintf("%s (+%d more)", path, events-1)
		}

		select {
		case runs <- trigger:
		default:
		}
	})
	defer debouncer.Stop()

	doRun(sigCtx, opts, set, runFn, "(initial)")

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(opts.Out, "\nshutting down watcher")
			return nil

		case trigger := <-runs:
			doRun(sigCtx, opts, set, runFn, trigger)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event) {
				continue
			}

			debouncer.Trigger(event.Name)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// doRun executes a single resolution run and prints the status line.
func doRun(ctx context.Context, opts Options, set *dirSet, runFn RunFunc, trigger string) {
	now := time.Now().Format("15:04:05")

	result, err := runFn(ctx)
	if err != nil {
		fmt.Fprintf(opts.Out, "[%s] %s → ERROR: %v\n", now, trigger, err)
		return
	}

	fmt.Fprintf(opts.Out, "[%s] %s → %s\n", now, trigger, Summary(result))

	if result.ManifestAdded > 0 || result.ManifestRemoved > 0 {
		fmt.Fprintf(opts.Out, "  manifest: +%d -%d\n", result.ManifestAdded, result.ManifestRemoved)
	}

	if err := set.add(result.Dirs); err != nil {
		opts.Logger.Warn("watching new modules", slog.String("error", err.Error()))
	}
}

// Summary renders the counts of a run as one line.
func Summary(r *RunResult) string {
	status := "OK"
	if r.Failed > 0 {
		status = "PARTIAL"
	}

	return fmt.Sprintf("%s (%d projects, %d dependencies, %d plugins, %d failed)",
		status, r.Projects, r.Dependencies, r.Plugins, r.Failed)
}

// dirSet tracks the directories registered with the watcher.
type dirSet struct {
	watcher *fsnotify.Watcher
	dirs    map[string]bool
}

func newDirSet(w *fsnotify.Watcher) *dirSet {
	return &dirSet{watcher: w, dirs: make(map[string]bool)}
}

func (s *dirSet) add(dirs []string) error {
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return fmt.Errorf("resolving module directory %q: %w", d, err)
		}

		if s.dirs[abs] {
			continue
		}

		if err := s.watcher.Add(abs); err != nil {
			return fmt.Errorf("watching module directory %q: %w", abs, err)
		}

		s.dirs[abs] = true
	}

	return nil
}

// isRelevant keeps content changes of module descriptors only. Editors
// that save by rename produce a Create on the descriptor name.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	return filepath.Base(event.Name) == project.DescriptorFile
}
