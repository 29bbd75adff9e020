// Command apiserver runs the IP Whisperer daemon: the REST and chat API, the
// gRPC health service and, unless a dedicated worker owns it, the monitoring
// scheduler.
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
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/grpc"
	httpapi "github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http/middleware"
)

const (
	defaultConfigPath   = "configs/config.yaml"
	healthProbeInterval = 15 * time.Second
	sessionGaugePeriod  = 30 * time.Second
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	noScheduler := flag.Bool("no-scheduler", false, "leave monitoring to a separate worker")
	flag.Parse()

	if err := run(*configPath, *noScheduler); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads path when it exists and falls back to the environment.
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); err != nil {
		cfg, err := config.LoadFromEnv()
		return cfg, false, err
	}
	cfg, err := config.Load(path)
	return cfg, true, err
}

func run(configPath string, noScheduler bool) error {
	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	logger.Info("starting IP Whisperer API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.String("built", buildDate),
		logging.Int("http_port", cfg.Server.Port),
		logging.Int("grpc_port", cfg.Server.GRPCPort),
	)

	infra, err := bootstrap.Open(cfg, logger, bootstrap.Options{Producer: true})
	if err != nil {
		return err
	}
	defer infra.Close()

	svc, err := infra.BuildServices()
	if err != nil {
		return err
	}

	if fromFile {
		watchConfig(configPath, logger, svc)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go svc.Sessions.RunSweeper(ctx, cfg.Session.SweepInterval)
	go svc.RunCachePurger(ctx, monitoring.DefaultPurgeInterval, logger)
	go infra.ReportSessions(ctx, sessionGaugePeriod, svc.Sessions.Len)

	if cfg.Monitoring.Enabled && !noScheduler {
		svc.Scheduler.Start(ctx)
		defer svc.Scheduler.Stop()
	}

	rl := middleware.DefaultRateLimitConfig()
	limiter := middleware.NewKeyedLimiter(rl.RequestsPerSecond, rl.BurstSize, rl.IdleTTL)
	go sweepLimiter(ctx, limiter, rl.IdleTTL)

	router, err := buildRouter(infra, svc, limiter)
	if err != nil {
		return err
	}
	httpSrv := httpapi.NewServer(httpapi.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	grpcSrv, err := grpc.NewServer(grpc.Config{
		Port:       cfg.Server.GRPCPort,
		Reflection: cfg.Server.Mode == "debug",
	}, grpc.WithLogger(logger), grpc.WithMetrics(infra.Metrics), grpc.WithGracefulTimeout(cfg.Server.ShutdownTimeout))
	if err != nil {
		return err
	}
	go grpcSrv.WatchHealth(ctx, healthProbeInterval, grpcCheckers(infra.HealthChecks())...)

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Start() }()
	go func() { errCh <- grpcSrv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errCh:
		if err != nil {
			logger.Error("server failed", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if serr := httpSrv.Stop(shutdownCtx); serr != nil {
		logger.Error("HTTP server shutdown error", logging.Err(serr))
	}
	if serr := grpcSrv.Stop(shutdownCtx); serr != nil {
		logger.Error("gRPC server shutdown error", logging.Err(serr))
	}

	logger.Info("servers stopped")
	return err
}

// watchConfig applies log level and similarity threshold changes without a
// restart.
func watchConfig(path string, logger logging.Logger, svc *bootstrap.Services) {
	err := config.Watch(path, func(next *config.Config) {
		if ls, ok := logger.(logging.LevelSetter); ok {
			ls.SetLevel(next.Log.Level)
		}
		svc.Aggregator.SetThreshold(next.Monitoring.SimilarityThreshold)
		logger.Info("configuration reloaded",
			logging.String("log_level", next.Log.Level),
			logging.Float64("threshold", next.Monitoring.SimilarityThreshold))
	}, func(err error) {
		logger.Warn("ignoring invalid configuration change", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}

func sweepLimiter(ctx context.Context, l *middleware.KeyedLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
