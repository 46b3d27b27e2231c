package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillkit/pkg/index"
	"github.com/jingkaihe/skillkit/pkg/presenter"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the search index in sync with the filesystem",
	Long: `Watch the skills root for manifest changes and update the index
incrementally, debouncing editor save bursts. Runs until interrupted.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runWatchCmd(cmd)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatchCmd(cmd *cobra.Command) {
	m, err := getManager()
	if err != nil {
		presenter.Error(err, "failed to initialize skill library")
		os.Exit(1)
	}

	// start from a fresh index so the watcher only has deltas to handle
	if _, err := m.Indexer.Rebuild(cmd.Context()); err != nil {
		presenter.Error(err, "initial index rebuild failed")
		os.Exit(1)
	}

	w, err := index.NewWatcher(m.Indexer)
	if err != nil {
		presenter.Error(err, "failed to start watcher")
		os.Exit(1)
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.Start(ctx)
	presenter.Info(fmt.Sprintf("Watching %s (ctrl-c to stop)", m.Root()))
	<-ctx.Done()
	presenter.Info("Stopped")
}
