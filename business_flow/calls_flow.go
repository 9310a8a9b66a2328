// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"context"
	"time"

	"github.com/vocalix/vocalix/app/dto"
	"github.com/vocalix/vocalix/repository"
	"github.com/vocalix/vocalix/utils"
)

// CallHistoryFlow exposes a user's recent calls joined with their billing outcome
type CallHistoryFlow interface {
	GetCallHistory(ctx context.Context, req *dto.GetCallHistoryRequest, metadata *ClientMetadata) (*dto.CallHistoryResponse, error)
}

// CallHistoryFlowImpl implements the call history flow
type CallHistoryFlowImpl struct {
	userRepo        repository.UserRepository
	callEventRepo   repository.CallEventRepository
	transactionRepo repository.TransactionRepository
	agentRepo       repository.AgentRepository
	lookback        time.Duration
}

// NewCallHistoryFlow creates a new call history flow instance
func NewCallHistoryFlow(
	userRepo repository.UserRepository,
	callEventRepo repository.CallEventRepository,
	transactionRepo repository.TransactionRepository,
	agentRepo repository.AgentRepository,
	lookback time.Duration,
) CallHistoryFlow {
	if lookback <= 0 {
		lookback = utils.DefaultLookbackWindow
	}
	return &CallHistoryFlowImpl{
		userRepo:        userRepo,
		callEventRepo:   callEventRepo,
		transactionRepo: transactionRepo,
		agentRepo:       agentRepo,
		lookback:        lookback,
	}
}

// GetCallHistory returns the user's calls in the lookback window with per-call billing state
func (f *CallHistoryFlowImpl) GetCallHistory(ctx context.Context, req *dto.GetCallHistoryRequest, metadata *ClientMetadata) (*dto.CallHistoryResponse, error) {
	if _, err := getUser(ctx, f.userRepo, req.UserID); err != nil {
		return nil, NewBusinessError("CALL_HISTORY_FAILED", "Call history failed", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	since := utils.UTCNow().Add(-f.lookback)
	events, err := f.callEventRepo.ListRecentByUser(ctx, req.UserID, since, limit)
	if err != nil {
		return nil, NewBusinessError("CALL_HISTORY_FAILED", "Call history failed", err)
	}

	callIDs := make([]string, 0, len(events))
	for _, event := range events {
		callIDs = append(callIDs, event.CallID)
	}

	billed, err := f.transactionRepo.BilledCallIDs(ctx, req.UserID, callIDs)
	if err != nil {
		return nil, NewBusinessError("CALL_HISTORY_FAILED", "Call history failed", err)
	}

	// Agent names resolved once per distinct provider agent in the page
	agentNames := make(map[string]*string)

	items := make([]dto.CallHistoryItem, 0, len(events))
	for _, event := range events {
		name, seen := agentNames[event.TelephonyAgentID]
		if !seen {
			if agent, err := f.agentRepo.ByTelephonyAgentID(ctx, event.TelephonyAgentID); err == nil && agent != nil {
				name = utils.ToPtr(agent.Name)
			}
			agentNames[event.TelephonyAgentID] = name
		}
		item := dto.CallHistoryItem{
			CallID:           event.CallID,
			TelephonyAgentID: event.TelephonyAgentID,
			AgentName:        name,
			DurationSec:      event.DurationSec,
			CallStatus:       string(event.CallStatus),
			Timestamp:        event.Timestamp,
			Billed:           billed[event.CallID],
			RecordingURL:     event.RecordingURL,
		}
		if item.Billed {
			if transaction, err := f.transactionRepo.ByCallIDRef(ctx, event.CallID); err == nil && transaction != nil {
				item.Cost = utils.ToPtr(transaction.Amount.String())
			}
		}
		items = append(items, item)
	}

	return &dto.CallHistoryResponse{Items: items}, nil
}
