package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/metrics"
	"github.com/example/liquor-inventory/internal/readmodel"
)

var errMalformedRecord = errors.New("malformed inventory record")

// ErrScannerStopped is returned by Start once the scanner has been stopped.
// A stopped scanner cannot be restarted; build a new one instead.
var ErrScannerStopped = errors.New("scanner stopped")

// Source lists every ledger record. Reads may lag behind the ledger.
type Source interface {
	ListAll(ctx context.Context) ([]*readmodel.InventoryReadModel, error)
}

// Config holds configuration for the scanner
type Config struct {
	// Interval between scheduled scans. Default: 24 hours
	Interval time.Duration
	// InitialDelay before the first scan after Start. Default: 1 minute
	InitialDelay time.Duration
	// RunTimeout bounds one scheduled scan. Default: 5 minutes
	RunTimeout time.Duration
	// DedupTTL is how long a raised warning is remembered. It must outlive
	// the calendar day the claim is keyed on. Default: 48 hours
	DedupTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:     24 * time.Hour,
		InitialDelay: time.Minute,
		RunTimeout:   5 * time.Minute,
		DedupTTL:     48 * time.Hour,
	}
}

// Result summarizes one scan
type Result struct {
	Scanned    int `json:"scanned"`
	Raised     int `json:"raised"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

// Scanner periodically classifies every record by how close it is to its
// best-before date and publishes a warning for each one that qualifies.
// It runs on its own goroutine; a failed run is retried at the next tick.
type Scanner struct {
	source    Source
	publisher inventory.ProblemPublisher
	dedup     Deduplicator
	logger    *zap.Logger
	metrics   *metrics.Metrics
	config    Config
	now       func() time.Time

	runMu     sync.Mutex // one scan at a time
	mu        sync.Mutex
	isRunning bool
	stopped   bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// Option configures a Scanner
type Option func(*Scanner)

// WithDeduplicator suppresses warnings already raised the same day
func WithDeduplicator(d Deduplicator) Option {
	return func(s *Scanner) { s.dedup = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

func New(source Source, publisher inventory.ProblemPublisher, logger *zap.Logger, config Config, opts ...Option) *Scanner {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.InitialDelay < 0 {
		config.InitialDelay = 0
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}
	if config.DedupTTL < 24*time.Hour {
		config.DedupTTL = defaults.DedupTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scanner{
		source:    source,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "expiration_scanner")),
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the scan schedule. Starting a running scanner is a no-op.
func (s *Scanner) Start() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrScannerStopped
	}
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	s.logger.Info("scanner started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("initial_delay", s.config.InitialDelay),
	)

	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *Scanner) run() {
	defer s.wg.Done()

	delay := time.NewTimer(s.config.InitialDelay)
	defer delay.Stop()
	select {
	case <-delay.C:
		s.runScheduled()
	case <-s.stopCh:
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runScheduled()
		case <-s.stopCh:
			s.logger.Info("scanner stopped")
			return
		}
	}
}

func (s *Scanner) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()

	result, err := s.RunNow(ctx)
	if err != nil {
		s.logger.Error("expiration scan failed, retrying at next tick", zap.Error(err))
		return
	}
	s.logger.Info("expiration scan finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("raised", result.Raised),
		zap.Int("suppressed", result.Suppressed),
		zap.Int("failed", result.Failed),
	)
}

// Stop stops the schedule for good and waits for a scan in progress to
// finish. RunNow keeps working after Stop.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		close(s.stopCh)
		s.wg.Wait()

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	})
}

// RunNow scans every record once. Only a failure to list the records fails
// the run; a bad record is logged, counted and skipped.
func (s *Scanner) RunNow(ctx context.Context) (Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := time.Now()
	records, err := s.source.ListAll(ctx)
	if err != nil {
		s.metrics.RecordScan(false, time.Since(started), 0, 0, 0)
		return Result{}, fmt.Errorf("failed to list inventory: %w", err)
	}

	today := s.now()
	var result Result
	for _, rec := range records {
		result.Scanned++
		switch res, err := s.scanRecord(ctx, today, rec); {
		case err != nil:
			result.Failed++
			s.logger.Warn("skipping inventory record", zap.Any("record", rec), zap.Error(err))
		case res == outcomeRaised:
			result.Raised++
		case res == outcomeSuppressed:
			result.Suppressed++
		}
	}

	s.metrics.RecordScan(true, time.Since(started), result.Raised, result.Suppressed, result.Failed)
	return result, nil
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeRaised
	outcomeSuppressed
)

func (s *Scanner) scanRecord(ctx context.Context, today time.Time, rm *readmodel.InventoryReadModel) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = outcomeNone, fmt.Errorf("panic while scanning: %v", r)
		}
	}()

	if rm == nil || rm.ProductID <= 0 || rm.WarehouseID <= 0 || rm.BestBeforeDate.IsZero() {
		return outcomeNone, errMalformedRecord
	}

	rec := inventory.Record{
		ProductID:      rm.ProductID,
		WarehouseID:    rm.WarehouseID,
		BestBeforeDate: inventory.Date(rm.BestBeforeDate),
		Stock:          rm.Stock,
		State:          inventory.AvailabilityState(rm.State),
		Version:        rm.Version,
	}
	problem := rec.CheckExpirationWarning(today)
	if problem == nil {
		return outcomeNone, nil
	}

	// The claim is taken before Publish, which reports no failures. A warning
	// lost in delivery stays claimed until the next calendar day.
	if s.dedup != nil {
		key := dedupKey(problem, today)
		first, err := s.dedup.FirstSeen(ctx, key, s.config.DedupTTL)
		if err != nil {
			// Raising twice beats not raising at all.
			s.logger.Warn("deduplication unavailable", zap.String("key", key), zap.Error(err))
		} else if !first {
			return outcomeSuppressed, nil
		}
	}

	s.metrics.RecordProblem(string(problem.Type), string(problem.Severity))
	s.publisher.Publish(ctx, *problem)
	return outcomeRaised, nil
}

// dedupKey identifies a warning per record, severity and calendar day
func dedupKey(p *inventory.ProblemDetected, today time.Time) string {
	return fmt.Sprintf("%d:%d:%s:%s", p.ProductID, p.WarehouseID, p.Severity, inventory.Date(today).Format(time.DateOnly))
}
