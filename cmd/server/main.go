// Command server runs the Bakame interaction log service: it polls the backend feeds,
// keeps the reconciled interaction table in memory and serves it over the management API.
// With -export it performs a single refresh, writes the CSV export and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bakame-ai/interaction-logs/internal/api"
	"github.com/bakame-ai/interaction-logs/internal/config"
	"github.com/bakame-ai/interaction-logs/internal/export"
	"github.com/bakame-ai/interaction-logs/internal/feeds"
	"github.com/bakame-ai/interaction-logs/internal/logging"
	"github.com/bakame-ai/interaction-logs/internal/refresh"
)

func main() {
	var (
		configPath string
		exportOnce bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	flag.BoolVar(&exportOnce, "export", false, "refresh once, write the CSV export and exit")
	flag.Parse()

	logging.SetupBaseLogger()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logging.SetDebug(cfg.Debug)
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}
	defer logging.Close()

	client := feeds.NewClient(cfg.Feeds)
	exporter := export.NewExporter(cfg.Export.Dir, cfg.Export.Location())

	if exportOnce {
		if err := runExport(client, exporter, cfg.Refresh.Timeout()); err != nil {
			log.Errorf("export failed: %v", err)
			logging.Close()
			os.Exit(1)
		}
		return
	}

	if err := run(configPath, cfg, client, exporter); err != nil {
		log.Errorf("server exited: %v", err)
		logging.Close()
		os.Exit(1)
	}
}

func runExport(client *feeds.Client, exporter *export.Exporter, timeout time.Duration) error {
	refresher := refresh.New(client, 0, refresh.WithCycleTimeout(timeout))
	defer refresher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	snap, err := refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh interactions: %w", err)
	}
	path, err := exporter.ExportCSV(snap.Rows, export.DateStamp(time.Now()))
	if err != nil {
		if errors.Is(err, export.ErrEmptyExport) {
			log.Warn("no interactions to export")
		}
		return err
	}
	fmt.Println(path)
	return nil
}

func run(configPath string, cfg *config.Config, client *feeds.Client, exporter *export.Exporter) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	refresher := refresh.New(client, cfg.Refresh.Interval(), refresh.WithCycleTimeout(cfg.Refresh.Timeout()))
	if err := refresher.Start(); err != nil {
		return err
	}
	defer refresher.Stop()

	server := api.NewServer(cfg, refresher, exporter)

	watcher := config.NewWatcher(configPath, func(next *config.Config) {
		logging.SetDebug(next.Debug)
		if err := logging.ConfigureLogOutput(next.LoggingToFile, next.LogDir); err != nil {
			log.WithError(err).Warn("failed to reconfigure log output")
		}
		if err := refresher.SetInterval(next.Refresh.Interval()); err != nil {
			log.WithError(err).Warn("failed to apply refresh interval")
		}
		exporter.SetLocation(next.Export.Location())
		server.UpdateClients(next)
	})
	if err := watcher.Start(ctx); err != nil {
		log.WithError(err).Warn("config watcher disabled")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}
