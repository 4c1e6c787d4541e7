package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kilimcininkoroglu/earbound/internal/download"
	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
	"github.com/kilimcininkoroglu/earbound/internal/ui"
	"github.com/kilimcininkoroglu/earbound/internal/version"
)

func newBatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batch FILE",
		Short: "Download every link listed in a file, one after another",
		Long: `Download every link listed in FILE, one after another.

Each line holds a link, optionally followed by a base directory for that
link, either after a space or after a '|'. Blank lines and lines starting
with '#' are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd.Context(), args[0])
		},
	}
}

func (a *app) runBatch(ctx context.Context, file string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Output.TUI {
		log.Warn("The terminal UI is not available in batch mode, using plain output")
	}

	baseDir, err := a.baseDirectory()
	if err != nil {
		return exitWith(ExitGeneralError, err)
	}
	if a.rememberDir {
		if err := a.remember(baseDir); err != nil {
			return exitWith(ExitGeneralError, fmt.Errorf("remembering directory: %w", err))
		}
	}

	queue := download.NewQueue(baseDir)
	if err := queue.LoadFromFile(file); err != nil {
		return exitWith(ExitParseError, fmt.Errorf("loading link file: %w", err))
	}
	if queue.Count() == 0 {
		return exitWith(ExitParseError, fmt.Errorf("no links found in %s", file))
	}

	sess, err := a.newSession(a.confirmer())
	if err != nil {
		return exitWith(ExitGeneralError, err)
	}
	defer sess.close()

	noColor := !a.cfg.Output.Colors
	if a.cfg.Output.ProgressStyle != "json" {
		fmt.Fprintf(a.stdout, "%s - Batch Download\n", version.Short())
		fmt.Fprintf(a.stdout, "Loaded %d links from %s\n\n", queue.Count(), file)
	}

	var interrupted atomic.Bool
	stop := onInterrupt(func(n int) {
		if n == 1 {
			fmt.Fprintln(a.stderr, "\nInterrupted, stopping downloads...")
		}
		interrupted.Store(true)
		cancel()
		sess.sup.Cancel()
	})
	defer stop()

	var current ui.Renderer
	manager := download.NewQueueManager(queue, sess.sup)
	manager.SetCallback(func(item *download.QueueItem, ev supervisor.Event) {
		if current == nil {
			if a.cfg.Output.ProgressStyle != "json" {
				fmt.Fprintf(a.stdout, "[%d/%d] %s\n", item.ID+1, queue.Count(), item.Link)
			}
			// NewRenderer only fails on styles Validate already rejects
			current, _ = ui.NewRenderer(a.cfg.Output.ProgressStyle, a.stdout, noColor, a.verbose)
		}
		sess.observe(ev)
		if current != nil {
			current.Handle(ev)
		}
		if ev.Kind == supervisor.EventOutcome {
			if current != nil {
				current.Close()
			}
			current = nil
		}
	})

	start := time.Now()
	stats := manager.Run(ctx)

	for _, item := range queue.Items() {
		if item.Outcome == nil && item.Error != nil {
			fmt.Fprintf(a.stderr, "%s: %v\n", item.Status, item.Error)
		}
	}
	if a.cfg.Output.ProgressStyle != "json" {
		printBatchSummary(a, stats, time.Since(start))
	}

	switch {
	case interrupted.Load() || stats.Canceled > 0:
		return exitWith(ExitInterrupted, nil)
	case stats.Failed > 0:
		return exitWith(ExitGeneralError, nil)
	default:
		return nil
	}
}

func printBatchSummary(a *app, stats download.QueueStats, elapsed time.Duration) {
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, "Batch download complete:")
	fmt.Fprintf(a.stdout, "  Total:     %d\n", stats.Total)
	fmt.Fprintf(a.stdout, "  Completed: %d\n", stats.Completed)
	if stats.Warnings > 0 {
		fmt.Fprintf(a.stdout, "  Warnings:  %d\n", stats.Warnings)
	}
	fmt.Fprintf(a.stdout, "  Failed:    %d\n", stats.Failed)
	if stats.Skipped > 0 {
		fmt.Fprintf(a.stdout, "  Skipped:   %d\n", stats.Skipped)
	}
	if stats.Canceled > 0 {
		fmt.Fprintf(a.stdout, "  Canceled:  %d\n", stats.Canceled)
	}
	fmt.Fprintf(a.stdout, "  Files:     %d\n", stats.Files)
	fmt.Fprintf(a.stdout, "  Time:      %s\n", ui.FormatDuration(elapsed))
}
