package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// CooldownState maps an alert key to the epoch-millisecond timestamp of the
// last alert sent for that key. Absence means the key has never alerted.
type CooldownState map[string]int64

// StatusSnapshot is the full report of the latest check, overwritten
// wholesale every cycle for external consumers.
type StatusSnapshot struct {
	Timestamp time.Time                  `json:"timestamp"`
	Prices    map[string]decimal.Decimal `json:"prices"`
	Chains    []ChainStatus              `json:"chains"`
}

// ChainStatus is one chain's entry in the snapshot. Balance and ValueUSD are
// null when the read failed.
type ChainStatus struct {
	Chain          string           `json:"chain"`
	Symbol         string           `json:"symbol"`
	Balance        *decimal.Decimal `json:"balance"`
	ValueUSD       *decimal.Decimal `json:"value_usd"`
	BelowThreshold bool             `json:"below_threshold"`
	Error          string           `json:"error,omitempty"`
}
