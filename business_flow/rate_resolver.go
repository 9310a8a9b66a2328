// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"sort"

	"github.com/vocalix/vocalix/models"
)

// SelectAgentForCall picks the assignment whose rate bills the call.
//
// Strict priority: exact telephony agent id match, then the primary
// assignment, then the most recently assigned one. The function is pure so
// identical inputs always yield the identical selection; candidates are
// ordered internally rather than trusting the caller's slice order.
func SelectAgentForCall(event models.CallEvent, assignments []*models.AgentAssignment) (*models.AgentAssignment, error) {
	if len(assignments) == 0 {
		return nil, ErrNoAgentAssignments
	}

	candidates := make([]*models.AgentAssignment, len(assignments))
	copy(candidates, assignments)
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].AssignedAt.Equal(candidates[j].AssignedAt) {
			return candidates[i].AssignedAt.After(candidates[j].AssignedAt)
		}
		return candidates[i].ID > candidates[j].ID
	})

	for _, candidate := range candidates {
		if candidate.TelephonyAgentID == event.TelephonyAgentID {
			return candidate, nil
		}
	}

	for _, candidate := range candidates {
		if candidate.IsPrimary {
			return candidate, nil
		}
	}

	return candidates[0], nil
}
