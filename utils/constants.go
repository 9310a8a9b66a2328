package utils

import (
	"time"
)

// Billing constants
const (
	// USDCurrency is the currency every balance and transaction is denominated in
	USDCurrency = "USD"

	// CostScale is the number of fractional digits a computed call cost is rounded to
	CostScale = 4

	// DefaultWarningThreshold is the balance level below which warning alerts fire
	DefaultWarningThreshold = 10.0

	// DefaultCriticalThreshold is the balance level below which critical alerts fire
	DefaultCriticalThreshold = 5.0
)

// Polling constants
const (
	// DefaultLookbackWindow is how far back each billing pass scans the call feed
	DefaultLookbackWindow = 2 * time.Hour

	// DefaultRefreshInterval is the pause between billing passes for a user
	DefaultRefreshInterval = 5 * time.Second

	// DefaultEventBatchLimit caps the call events fetched per billing pass
	DefaultEventBatchLimit = 500
)

// Notification constants
const (
	// DefaultDebounceWindow suppresses repeat alerts for the same balance bucket
	DefaultDebounceWindow = 30 * time.Minute
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
