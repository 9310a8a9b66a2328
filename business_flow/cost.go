// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vocalix/vocalix/utils"
)

var secondsPerMinute = decimal.NewFromInt(60)

// CallCost computes the charge for a billed call.
//
// cost = (duration_sec / 60) * rate_per_minute, rounded to the ledger's
// fractional scale. Zero or negative durations cost nothing.
func CallCost(durationSec int, ratePerMinute decimal.Decimal) decimal.Decimal {
	if durationSec <= 0 {
		return decimal.Zero
	}
	return ratePerMinute.
		Mul(decimal.NewFromInt(int64(durationSec))).
		Div(secondsPerMinute).
		Round(utils.CostScale)
}

// DurationRecoverer attempts to reconstruct a call duration that the event
// feed delivered as zero
type DurationRecoverer interface {
	RecoverDuration(ctx context.Context, recordingURL string) (int, error)
}

// RecordingProber recovers call durations by probing recording metadata over HTTP
type RecordingProber struct {
	client  *http.Client
	timeout time.Duration
}

// NewRecordingProber creates a new recording prober with a bounded probe timeout
func NewRecordingProber(timeout time.Duration) *RecordingProber {
	return &RecordingProber{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// RecoverDuration issues a single HEAD request against the recording URL and
// reads the duration the media server advertises. One bounded attempt; callers
// treat failure as "cannot bill" rather than retrying forever.
func (p *RecordingProber) RecoverDuration(ctx context.Context, recordingURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, recordingURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDurationRecovery, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDurationRecovery, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: recording probe returned status %d", ErrDurationRecovery, resp.StatusCode)
	}

	for _, header := range []string{"X-Recording-Duration", "Content-Duration"} {
		value := resp.Header.Get(header)
		if value == "" {
			continue
		}
		seconds, err := strconv.ParseFloat(value, 64)
		if err != nil || seconds < 0 {
			continue
		}
		return int(seconds), nil
	}

	return 0, fmt.Errorf("%w: recording metadata carries no duration", ErrDurationRecovery)
}
