package monitoring

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
)

// Scanner finds violations for one asset. *Aggregator implements it.
type Scanner interface {
	ScanAll(ctx context.Context, ip *asset.IPAsset) []asset.ViolationRecord
}

// TickGuard lets only one replica run a given tick. Acquire returns
// acquired=false when another holder owns the tick.
type TickGuard interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// TickReport summarises one scheduler tick.
type TickReport struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Assets     int           `json:"assets"`
	Failures   int           `json:"failures"`
	Violations int           `json:"violations"`
	Skipped    bool          `json:"skipped"`
}

// SchedulerOptions tune the scheduler. Zero values select defaults.
type SchedulerOptions struct {
	Interval    time.Duration
	Concurrency int
	Guard       TickGuard
}

const (
	defaultInterval    = 5 * time.Minute
	defaultConcurrency = 4
)

// Scheduler runs a scan of every registered asset on a fixed interval.
type Scheduler struct {
	registry    *Registry
	scanner     Scanner
	interval    time.Duration
	concurrency int
	guard       TickGuard
	metrics     Metrics
	logger      logging.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	ticks   atomic.Int64
}

// NewScheduler builds a stopped Scheduler.
func NewScheduler(registry *Registry, scanner Scanner, opts SchedulerOptions, metrics Metrics, logger logging.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scheduler{
		registry:    registry,
		scanner:     scanner,
		interval:    opts.Interval,
		concurrency: opts.Concurrency,
		guard:       opts.Guard,
		metrics:     metrics,
		logger:      logger,
	}
}

// Start begins ticking every interval. The first tick fires one interval
// after Start. Calling Start on a running scheduler is a no-op. The loop also
// ends when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Debug("scheduler already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(ctx, s.stop, s.done)
	s.logger.Info("scan scheduler started", logging.Duration("interval", s.interval))
}

// Stop prevents further ticks and waits for a tick in progress to finish.
// It is safe to call on a stopped scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("scan scheduler stopped", logging.Int64("ticks", s.ticks.Load()))
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-ticker.C:
			// Stop must not abort a tick midway.
			s.RunOnce(context.WithoutCancel(ctx))
		}
	}
}

// RunOnce scans every registered asset and appends each asset's matches to
// its own pending list. Failures are contained per asset.
func (s *Scheduler) RunOnce(ctx context.Context) TickReport {
	start := time.Now()
	tick := s.ticks.Add(1)
	report := TickReport{StartedAt: start.UTC()}
	log := s.logger.With(logging.Int64("tick", tick))

	if s.guard != nil {
		release, acquired, err := s.guard.Acquire(ctx)
		if err != nil {
			log.Warn("tick guard unavailable, running unguarded", logging.Err(err))
		} else if !acquired {
			log.Debug("tick owned by another replica, skipping")
			report.Skipped = true
			return report
		} else {
			defer release()
		}
	}

	assets, err := s.registry.List(ctx)
	if err != nil {
		log.Error("failed to list assets for scan", logging.Err(err))
		report.Failures = 1
		report.Duration = time.Since(start)
		return report
	}
	report.Assets = len(assets)

	var failures, violations atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, a := range assets {
		a := a
		g.Go(func() error {
			n, err := s.scanAsset(ctx, a)
			if err != nil {
				failures.Add(1)
				log.Error("asset scan failed", logging.String("ip_id", a.ID), logging.Err(err))
				return nil
			}
			violations.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	report.Failures = int(failures.Load())
	report.Violations = int(violations.Load())
	report.Duration = time.Since(start)
	s.metrics.ObserveTick(report.Duration, report.Assets, report.Failures)

	log.Info("scan tick finished",
		logging.Int("assets", report.Assets),
		logging.Int("violations", report.Violations),
		logging.Int("failures", report.Failures),
		logging.Duration("took", report.Duration))
	return report
}

func (s *Scheduler) scanAsset(ctx context.Context, a *asset.IPAsset) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panicked: %v", r)
		}
	}()
	records := s.scanner.ScanAll(ctx, a)
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.registry.AppendViolations(ctx, a.ID, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
