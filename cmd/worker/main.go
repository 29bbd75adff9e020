// Command worker runs the background side of IP Whisperer: the monitoring
// scheduler and, when alerts go through Kafka, the relay that delivers them to
// the webhook. Several replicas may run; with monitoring.distributed_lock set
// only one of them scans per tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/monitoring"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/bootstrap"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/config"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultHealthPort = 8081
	shutdownTimeout   = 30 * time.Second
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the /healthz, /readyz and /metrics listener")
	runOnce := flag.Bool("once", false, "run a single monitoring tick and exit")
	flag.Parse()

	if err := run(*configPath, *healthPort, *runOnce); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func run(configPath string, healthPort int, runOnce bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	logger.Info("starting IP Whisperer worker",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.Bool("monitoring", cfg.Monitoring.Enabled),
		logging.Bool("alert_relay", cfg.Alerts.KafkaEnabled),
	)

	infra, err := bootstrap.Open(cfg, logger, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer infra.Close()

	mon := infra.BuildMonitoring()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runOnce {
		report := mon.Scheduler.RunOnce(ctx)
		logger.Info("tick finished",
			logging.Int("assets", report.Assets),
			logging.Int("failures", report.Failures),
			logging.Int("violations", report.Violations),
			logging.Bool("skipped", report.Skipped),
			logging.Duration("duration", report.Duration))
		return nil
	}

	consumer, err := newAlertConsumer(cfg, infra.WebhookNotifier(), logger)
	if err != nil {
		return err
	}
	if consumer != nil {
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Warn("kafka consumer close failed", logging.Err(err))
			}
		}()
	}

	go mon.RunCachePurger(ctx, monitoring.DefaultPurgeInterval, logger)

	if cfg.Monitoring.Enabled {
		mon.Scheduler.Start(ctx)
		defer mon.Scheduler.Stop()
	}

	healthSrv := newHealthServer(infra, healthPort)
	errCh := make(chan error, 1)
	go func() { errCh <- healthSrv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errCh:
		if err != nil {
			logger.Error("health server failed", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := healthSrv.Stop(shutdownCtx); serr != nil {
		logger.Error("health server shutdown error", logging.Err(serr))
	}
	logger.Info("worker stopped")
	return err
}
