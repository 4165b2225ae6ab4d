package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopwatch/feed-uploader/internal/config"
	"github.com/shopwatch/feed-uploader/internal/logging"
	"github.com/shopwatch/feed-uploader/internal/metrics"
	"github.com/shopwatch/feed-uploader/internal/report"
	"github.com/shopwatch/feed-uploader/internal/shops"
	"github.com/shopwatch/feed-uploader/internal/source"
	"github.com/shopwatch/feed-uploader/internal/storage"
	"github.com/shopwatch/feed-uploader/internal/uploader"
)

// Exit codes follow the component convention: 1 for configuration/input
// problems and runs with failed uploads, 2 for unexpected errors.
const (
	exitOK         = 0
	exitUserError  = 1
	exitUnexpected = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup(cfg.Logging)
		slog.Error("configuration error", "error", err)
		return exitUserError
	}

	logging.Setup(cfg.Logging)
	log := logging.Component("main")
	log.Info("feed uploader starting", "version", uploader.Version, "git_sha", uploader.GitSHA)

	if cfg.Metrics.Enabled {
		metrics.Init("feed_uploader")
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Info("received signal, aborting run", "signal", sig.String())
		cancel()
	}()

	src, err := source.NewRowSource(cfg.Source)
	if err != nil {
		log.Error("failed to create row source", "error", err)
		return exitUserError
	}
	defer src.Close()

	resolver, err := shops.NewResolver(ctx, cfg.Shops)
	if err != nil {
		log.Error("failed to create shop-domain resolver", "error", err)
		return exitUserError
	}
	defer resolver.Close()

	store, err := storage.NewObjectStore(cfg.Storage, cfg.AWSBucket)
	if err != nil {
		log.Error("failed to create object store", "error", err)
		return exitUserError
	}
	defer store.Close()

	runner, err := uploader.NewRunner(cfg, src, resolver, store)
	if err != nil {
		log.Error("failed to create runner", "error", err)
		return exitUserError
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		log.Error("run failed", "error", err)
		if summary != nil {
			writeReport(cfg, summary, log)
		}
		return exitUnexpected
	}

	writeReport(cfg, summary, log)

	if !summary.OK() {
		log.Error("run did not complete cleanly",
			"attempted", summary.Attempted,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"canceled", summary.Canceled,
		)
		return exitUserError
	}

	log.Info("all documents uploaded",
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
	)
	return exitOK
}

func writeReport(cfg config.Config, summary *uploader.RunSummary, log *slog.Logger) {
	w, err := report.NewWriter(cfg.Report.Dir)
	if err != nil {
		log.Warn("report writer unavailable", "error", err)
		return
	}
	if err := w.Write(summary); err != nil {
		log.Warn("failed to write run report", "error", err)
	}
}
