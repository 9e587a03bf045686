package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/internal/synccli"
	"github.com/okian/rollcall/internal/wiring"
	"github.com/okian/rollcall/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		tags    = flag.String("tags", "", "Comma separated guild tag ids to sync")
		zone    = flag.Int("zone", 0, "Only sync reports of this zone")
		since   = flag.String("since", "", "Skip reports before this date")
		fresh   = flag.Bool("fresh", false, "Bypass the response cache")
		ranks   = flag.String("ranks", "", "Print these ranks instead of the counting ranks")
		format  = flag.String("format", synccli.FormatTable, "Output format: table, json or export")
		noSync  = flag.Bool("no-sync", false, "Print stored attendance without syncing")
		timeout = flag.Duration("timeout", defaultRunTimeout, "Give up after this long")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		synccli.ShowHelp(os.Stdout)
		return
	}

	// Logs go to stderr so stdout stays parseable.
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		fail(err)
	}
	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		fail(err)
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	run := &synccli.Config{
		ZoneID:   *zone,
		Fresh:    *fresh,
		Format:   *format,
		SkipSync: *noSync,
	}
	if run.TagIDs, err = synccli.ParseIDs(*tags); err != nil {
		fail(err)
	}
	if len(run.TagIDs) == 0 {
		run.TagIDs = cfg.SyncTagIDs
	}
	if run.RankIDs, err = synccli.ParseIDs(*ranks); err != nil {
		fail(err)
	}
	if run.Since, err = synccli.ParseSince(*since); err != nil {
		fail(err)
	}

	comps, err := wiring.Build(ctx, cfg, logger.Get())
	if err != nil {
		fail(err)
	}
	_, runErr := synccli.Run(ctx, run, comps.Service, os.Stdout)
	if err := comps.Close(); err != nil {
		logger.Get().Warn(ctx, "close components", logger.Error(err))
	}
	if runErr != nil {
		fail(runErr)
	}
}

func fail(err error) {
	os.Stderr.WriteString("attendance-sync: " + err.Error() + "\n")
	os.Exit(1)
}
