// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	businessflow "github.com/vocalix/vocalix/business_flow"
	"github.com/vocalix/vocalix/config"
	"github.com/vocalix/vocalix/repository"
	"github.com/vocalix/vocalix/utils"
)

// BillingScheduler drives the billing loop: it keeps one worker per active
// user, each worker alternating between draining that user's call feed and
// refreshing the balance for the notifier.
type BillingScheduler struct {
	userRepo    repository.UserRepository
	balanceRepo repository.BalanceRepository
	processor   businessflow.BillingProcessorFlow
	notifier    businessflow.BalanceNotifierFlow
	logger      *log.Logger

	cfg config.BillingConfig

	mu      sync.Mutex
	workers map[uint]*userWorker
	wg      sync.WaitGroup

	logFile *os.File
}

// userWorker is the per-user detection loop with its own reentrancy guard
type userWorker struct {
	userID   uint
	inFlight atomic.Bool
	cancel   context.CancelFunc
}

func NewBillingScheduler(
	userRepo repository.UserRepository,
	balanceRepo repository.BalanceRepository,
	processor businessflow.BillingProcessorFlow,
	notifier businessflow.BalanceNotifierFlow,
	cfg config.BillingConfig,
	logger *log.Logger,
) *BillingScheduler {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = utils.DefaultRefreshInterval
	}
	if cfg.DetectionInterval <= 0 {
		cfg.DetectionInterval = 30 * time.Second
	}

	s := &BillingScheduler{
		userRepo:    userRepo,
		balanceRepo: balanceRepo,
		processor:   processor,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger,
		workers:     make(map[uint]*userWorker),
	}

	if s.logger == nil {
		if err := s.initSchedulerLogger(); err != nil {
			s.logger = log.Default()
			s.logger.Printf("billing: failed to initialize file logger: %v", err)
		}
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *BillingScheduler) initSchedulerLogger() error {
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "billing.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
		s.logger = log.New(mw, "billing ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create billing log file in any candidate directory")
}

// Start launches the scheduler loop in a background goroutine and returns a
// stop function. Stop cancels every timer but lets in-flight billing passes
// finish so a ledger write is never abandoned halfway.
func (s *BillingScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.cfg.DetectionInterval)
		defer ticker.Stop()

		s.reconcileWorkers(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reconcileWorkers(ctx)
			}
		}
	}()

	return func() {
		cancel()
		s.wg.Wait()
		if s.logFile != nil {
			_ = s.logFile.Close()
		}
	}
}

// reconcileWorkers starts workers for newly active users and stops workers
// whose user went inactive
func (s *BillingScheduler) reconcileWorkers(ctx context.Context) {
	users, err := s.userRepo.ListActive(ctx, 0, 0)
	if err != nil {
		s.logger.Printf("billing: list active users failed: %v", err)
		return
	}

	active := make(map[uint]bool, len(users))
	for _, user := range users {
		active[user.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range users {
		if _, ok := s.workers[user.ID]; ok {
			continue
		}
		workerCtx, workerCancel := context.WithCancel(ctx)
		worker := &userWorker{userID: user.ID, cancel: workerCancel}
		s.workers[user.ID] = worker

		s.wg.Add(1)
		go s.runWorker(workerCtx, worker)
		s.logger.Printf("billing: started worker for user %d", user.ID)
	}

	for userID, worker := range s.workers {
		if !active[userID] {
			worker.cancel()
			delete(s.workers, userID)
			s.logger.Printf("billing: stopped worker for user %d", userID)
		}
	}
}

// runWorker is the per-user loop: a fast balance refresh tick for the
// notifier and a slower detection tick for billing
func (s *BillingScheduler) runWorker(ctx context.Context, worker *userWorker) {
	defer s.wg.Done()

	refresh := time.NewTicker(s.cfg.RefreshInterval)
	defer refresh.Stop()
	detect := time.NewTicker(s.cfg.DetectionInterval)
	defer detect.Stop()

	s.detectOnce(ctx, worker)

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			s.refreshBalance(ctx, worker.userID)
		case <-detect.C:
			s.detectOnce(ctx, worker)
		}
	}
}

// detectOnce runs one billing pass for the worker's user. If the previous
// pass is still in flight the tick is skipped entirely, never queued.
func (s *BillingScheduler) detectOnce(ctx context.Context, worker *userWorker) {
	if !worker.inFlight.CompareAndSwap(false, true) {
		s.logger.Printf("billing: user %d detection still in flight, skipping tick", worker.userID)
		return
	}
	defer worker.inFlight.Store(false)

	// Detach from the worker's cancellation so teardown waits for this pass
	// instead of aborting it mid-write; the timeout still bounds it
	passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PassTimeout)
	defer cancel()

	result, err := s.processor.ProcessRecentCalls(passCtx, worker.userID)
	if err != nil {
		s.logger.Printf("billing: user %d pass failed: %v", worker.userID, err)
		return
	}
	if result.Billed > 0 || result.Failed > 0 || result.Held > 0 {
		s.logger.Printf("billing: user %d pass fetched=%d billed=%d already=%d zero=%d held=%d failed=%d",
			worker.userID, result.Fetched, result.Billed, result.AlreadyBilled, result.ZeroCost, result.Held, result.Failed)
	}
	billingPassesTotal.Inc()
	billedCallsTotal.Add(float64(result.Billed))
	heldCallsTotal.Add(float64(result.Held))
}

// refreshBalance reads the balance and lets the notifier evaluate it
func (s *BillingScheduler) refreshBalance(ctx context.Context, userID uint) {
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, err := s.userRepo.ByID(readCtx, userID)
	if err != nil || user == nil {
		if err != nil {
			s.logger.Printf("billing: user %d read failed during refresh: %v", userID, err)
		}
		return
	}

	balance, err := s.balanceRepo.ByUserID(readCtx, userID)
	if err != nil {
		// Transient read failure: keep the last known classifier state and
		// retry on the next tick
		s.logger.Printf("billing: user %d balance refresh failed: %v", userID, err)
		return
	}
	if balance == nil {
		return
	}

	current, _ := balance.CurrentBalance.Float64()
	userBalanceGauge.WithLabelValues(strconv.FormatUint(uint64(userID), 10)).Set(current)

	if err := s.notifier.Observe(readCtx, *user, *balance); err != nil {
		s.logger.Printf("billing: user %d notifier observe failed: %v", userID, err)
	}
}

// WorkerCount reports the number of running per-user workers
func (s *BillingScheduler) WorkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}
