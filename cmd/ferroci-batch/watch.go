package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"ferroci/internal/files"
	"ferroci/internal/infrastructure"
	"ferroci/internal/services"
)

// defaultSettle is how long a folder must be quiet before new files are analyzed
const defaultSettle = 750 * time.Millisecond

func newWatchCmd(opts *cliOptions) *cobra.Command {
	var (
		settle  time.Duration
		initial bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Analyze every CSV export that appears in a folder",
		Long: `watch turns each burst of new or rewritten CSV files in a folder into one
drop. Files are analyzed once the folder has been quiet for --settle, so an
instrument that writes in chunks is read only after it finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			deps, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			fw := &folderWatcher{
				dir:     dir,
				manager: files.NewManager(dir, files.LayoutFrom(deps.cfg.Analysis), deps.logger),
				service: deps.service,
				settle:  settle,
				out:     cmd.OutOrStdout(),
				logger:  infrastructure.WithComponent(deps.logger, "watch"),
			}
			if opts.quiet {
				fw.out = io.Discard
			}
			return fw.run(cmd.Context(), initial)
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", defaultSettle, "quiet period before a burst of files is analyzed")
	cmd.Flags().BoolVar(&initial, "initial", false, "analyze the CSV files already in the folder before watching")
	return cmd
}

// folderWatcher batches file events of one folder into drops
type folderWatcher struct {
	dir     string
	manager *files.Manager
	service *services.AnalysisService
	settle  time.Duration
	out     io.Writer
	logger  *slog.Logger

	pending []string
	seen    map[string]struct{}
}

func (fw *folderWatcher) run(ctx context.Context, initial bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(fw.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fw.dir, err)
	}

	if initial {
		existing, err := fw.manager.DiscoverCSV()
		if err != nil {
			return err
		}
		for _, p := range existing {
			fw.add(p)
		}
		if err := fw.flush(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(fw.out, "watching %s (Ctrl+C to stop)\n", fw.dir)

	timer := time.NewTimer(fw.settle)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if fw.accept(event) {
				fw.add(event.Name)
				timer.Reset(fw.settle)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.WarnContext(ctx, "watch error", slog.String("error", err.Error()))

		case <-timer.C:
			if err := fw.flush(ctx); err != nil {
				return err
			}
		}
	}
}

// accept keeps creations and rewrites of instrument exports. Hidden files
// (including the atomic-write temporaries) and the analyzer's own outputs
// are ignored.
func (fw *folderWatcher) accept(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !files.IsCSV(name) || fw.manager.IsOutputFile(name) {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && !info.IsDir()
}

func (fw *folderWatcher) add(path string) {
	if fw.seen == nil {
		fw.seen = make(map[string]struct{})
	}
	if _, dup := fw.seen[path]; dup {
		return
	}
	fw.seen[path] = struct{}{}
	fw.pending = append(fw.pending, path)
}

// flush analyzes the pending files as one drop. Only a persistence failure
// stops the watch; per-file failures are reported and the loop continues.
func (fw *folderWatcher) flush(ctx context.Context) error {
	if len(fw.pending) == 0 {
		return nil
	}
	paths := fw.pending
	fw.pending = nil
	fw.seen = nil

	report, err := fw.service.Drop(ctx, paths)
	if report != nil {
		printSummary(fw.out, report)
	}
	return err
}
