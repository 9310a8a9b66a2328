// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vocalix/vocalix/models"
	"github.com/vocalix/vocalix/repository"
	"github.com/vocalix/vocalix/utils"
)

// ProcessResult summarizes one billing pass over a user's call feed
type ProcessResult struct {
	Fetched       int `json:"fetched"`        // Events in the lookback window
	Billed        int `json:"billed"`         // New deductions committed
	AlreadyBilled int `json:"already_billed"` // Skipped, deduction already on the ledger
	ZeroCost      int `json:"zero_cost"`      // Marked processed without a deduction
	Held          int `json:"held"`           // Left unprocessed for manual review
	Failed        int `json:"failed"`         // Errored, retried next pass
}

// BillingProcessorFlow drains a user's recent call events into ledger deductions
type BillingProcessorFlow interface {
	ProcessRecentCalls(ctx context.Context, userID uint) (*ProcessResult, error)
}

// BillingProcessorFlowImpl implements the billing processor flow.
//
// Each instance owns a session-local cache of call IDs it has already settled,
// which only trims repeat lookups inside one process lifetime. The partial
// unique index on the ledger remains the sole authority against double
// billing; a restarted or concurrent processor is safe without this cache.
type BillingProcessorFlowImpl struct {
	callEventRepo   repository.CallEventRepository
	assignmentRepo  repository.AgentAssignmentRepository
	transactionRepo repository.TransactionRepository
	ledger          LedgerFlow
	recoverer       DurationRecoverer

	lookback   time.Duration
	batchLimit int
	logger     *log.Logger

	mu        sync.Mutex
	processed map[string]bool
}

// NewBillingProcessorFlow creates a new billing processor flow instance
func NewBillingProcessorFlow(
	callEventRepo repository.CallEventRepository,
	assignmentRepo repository.AgentAssignmentRepository,
	transactionRepo repository.TransactionRepository,
	ledger LedgerFlow,
	recoverer DurationRecoverer,
	lookback time.Duration,
	batchLimit int,
	logger *log.Logger,
) BillingProcessorFlow {
	if lookback <= 0 {
		lookback = utils.DefaultLookbackWindow
	}
	if batchLimit <= 0 {
		batchLimit = utils.DefaultEventBatchLimit
	}
	if logger == nil {
		logger = log.Default()
	}
	return &BillingProcessorFlowImpl{
		callEventRepo:   callEventRepo,
		assignmentRepo:  assignmentRepo,
		transactionRepo: transactionRepo,
		ledger:          ledger,
		recoverer:       recoverer,
		lookback:        lookback,
		batchLimit:      batchLimit,
		logger:          logger,
		processed:       make(map[string]bool),
	}
}

// ProcessRecentCalls runs one billing pass for the user.
//
// Per-event failures are logged and counted, never abort the batch; the
// failed event stays unprocessed and is retried on the next pass.
func (p *BillingProcessorFlowImpl) ProcessRecentCalls(ctx context.Context, userID uint) (*ProcessResult, error) {
	since := utils.UTCNow().Add(-p.lookback)

	events, err := p.callEventRepo.ListRecentByUser(ctx, userID, since, p.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch call events for user %d: %w", userID, err)
	}

	result := &ProcessResult{Fetched: len(events)}
	if len(events) == 0 {
		return result, nil
	}

	candidates := make([]*models.CallEvent, 0, len(events))
	callIDs := make([]string, 0, len(events))
	for _, event := range events {
		if !event.CallStatus.IsBillable() {
			continue
		}
		if p.isProcessed(event.CallID) {
			result.AlreadyBilled++
			continue
		}
		candidates = append(candidates, event)
		callIDs = append(callIDs, event.CallID)
	}
	if len(candidates) == 0 {
		return result, nil
	}

	billed, err := p.transactionRepo.BilledCallIDs(ctx, userID, callIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check billed calls for user %d: %w", userID, err)
	}

	var assignments []*models.AgentAssignment
	assignmentsLoaded := false

	for _, event := range candidates {
		if billed[event.CallID] {
			p.markProcessed(event.CallID)
			result.AlreadyBilled++
			continue
		}

		if !assignmentsLoaded {
			assignments, err = p.assignmentRepo.ListByUser(ctx, userID)
			if err != nil {
				return result, fmt.Errorf("failed to load assignments for user %d: %w", userID, err)
			}
			assignmentsLoaded = true
		}

		if err := p.processEvent(ctx, userID, event, assignments, result); err != nil {
			result.Failed++
			p.logger.Printf("billing: user %d call %s failed, will retry: %v", userID, event.CallID, err)
		}
	}

	return result, nil
}

// processEvent settles a single call event against the ledger
func (p *BillingProcessorFlowImpl) processEvent(ctx context.Context, userID uint, event *models.CallEvent, assignments []*models.AgentAssignment, result *ProcessResult) error {
	if len(assignments) == 0 {
		// Reject-and-hold: billing at a made-up rate risks silent revenue
		// errors, so the event stays unprocessed until an operator assigns
		// an agent
		result.Held++
		p.logger.Printf("billing: user %d call %s held, no agent assignments", userID, event.CallID)
		return nil
	}

	assignment, err := SelectAgentForCall(*event, assignments)
	if err != nil {
		result.Held++
		p.logger.Printf("billing: user %d call %s held: %v", userID, event.CallID, err)
		return nil
	}

	duration := event.DurationSec
	if duration == 0 && event.RecordingURL != nil && p.recoverer != nil {
		recovered, err := p.recoverer.RecoverDuration(ctx, *event.RecordingURL)
		if err != nil {
			// One bounded attempt only; the event is settled at zero cost
			// instead of reprocessing forever
			p.logger.Printf("billing: user %d call %s duration recovery failed, settling at zero: %v", userID, event.CallID, err)
		} else {
			duration = recovered
		}
	}

	cost := CallCost(duration, assignment.RatePerMinute)
	if !cost.IsPositive() {
		p.markProcessed(event.CallID)
		result.ZeroCost++
		return nil
	}

	description := fmt.Sprintf("call %s via agent %s (%ds)", event.CallID, assignment.TelephonyAgentID, duration)
	if _, err := p.ledger.ApplyTransaction(ctx, userID, cost, models.TransactionTypeDeduction, description, utils.ToPtr(event.CallID)); err != nil {
		return err
	}

	p.markProcessed(event.CallID)
	result.Billed++
	return nil
}

func (p *BillingProcessorFlowImpl) isProcessed(callID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed[callID]
}

func (p *BillingProcessorFlowImpl) markProcessed(callID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed[callID] = true
}
