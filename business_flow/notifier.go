// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/vocalix/vocalix/models"
	"github.com/vocalix/vocalix/utils"
)

// NotificationSink delivers a low balance alert to the user. Delivery
// transport (email, SMS) lives outside this flow.
type NotificationSink interface {
	NotifyLowBalance(ctx context.Context, user models.User, status models.BalanceStatus, balance decimal.Decimal) error
}

// BalanceNotifierFlow watches balance movements and decides when to alert
type BalanceNotifierFlow interface {
	// Observe classifies the balance and fires the sink when the balance
	// newly crosses into a worse bucket
	Observe(ctx context.Context, user models.User, balance models.Balance) error
}

// BalanceNotifierFlowImpl implements the balance notifier flow.
//
// Alerts fire only on a transition into a worse bucket, and at most once per
// user and bucket within the debounce window. Debounce state lives in redis
// so restarts and replicas do not re-alert; when redis is unavailable an
// in-process map takes over for the lifetime of this instance.
type BalanceNotifierFlowImpl struct {
	sink     NotificationSink
	rc       *redis.Client
	prefix   string
	debounce time.Duration
	logger   *log.Logger

	mu         sync.Mutex
	lastStatus map[uint]models.BalanceStatus
	lastFired  map[string]time.Time
}

// NewBalanceNotifierFlow creates a new balance notifier flow instance
func NewBalanceNotifierFlow(sink NotificationSink, rc *redis.Client, prefix string, debounce time.Duration, logger *log.Logger) BalanceNotifierFlow {
	if debounce <= 0 {
		debounce = utils.DefaultDebounceWindow
	}
	if logger == nil {
		logger = log.Default()
	}
	return &BalanceNotifierFlowImpl{
		sink:       sink,
		rc:         rc,
		prefix:     prefix,
		debounce:   debounce,
		logger:     logger,
		lastStatus: make(map[uint]models.BalanceStatus),
		lastFired:  make(map[string]time.Time),
	}
}

// Observe implements the transition-plus-debounce alert policy
func (n *BalanceNotifierFlowImpl) Observe(ctx context.Context, user models.User, balance models.Balance) error {
	status := balance.Status()

	n.mu.Lock()
	previous, seen := n.lastStatus[user.ID]
	if !seen {
		// Unseen users start from healthy so a first observation already in
		// a bad bucket still alerts; the debounce key absorbs restart spam
		previous = models.BalanceStatusHealthy
	}
	n.lastStatus[user.ID] = status
	n.mu.Unlock()

	if status == models.BalanceStatusHealthy {
		return nil
	}
	if status.Severity() <= previous.Severity() {
		return nil
	}

	fired, err := n.claimDebounce(ctx, user.ID, status)
	if err != nil {
		n.logger.Printf("notifier: debounce check failed for user %d, suppressing alert: %v", user.ID, err)
		return err
	}
	if !fired {
		return nil
	}

	balanceAlertsTotal.WithLabelValues(string(status)).Inc()
	if err := n.sink.NotifyLowBalance(ctx, user, status, balance.CurrentBalance); err != nil {
		return fmt.Errorf("failed to deliver balance alert for user %d: %w", user.ID, err)
	}
	return nil
}

// claimDebounce reports whether this observer wins the right to alert for the
// user and bucket within the debounce window
func (n *BalanceNotifierFlowImpl) claimDebounce(ctx context.Context, userID uint, status models.BalanceStatus) (bool, error) {
	key := fmt.Sprintf("%sbalance_alert:%d:%s", n.prefix, userID, status)

	if n.rc != nil {
		ok, err := n.rc.SetNX(ctx, key, "1", n.debounce).Result()
		if err == nil {
			return ok, nil
		}
		n.logger.Printf("notifier: redis debounce unavailable, falling back to memory: %v", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	now := utils.UTCNow()
	if last, ok := n.lastFired[key]; ok && now.Sub(last) < n.debounce {
		return false, nil
	}
	n.lastFired[key] = now
	return true, nil
}
