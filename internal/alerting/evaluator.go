package alerting

import (
	"time"

	"github.com/shopspring/decimal"

	"balance-sentinel/internal/chains"
	"balance-sentinel/internal/storage"
)

// Evaluate decides which readings are alert-eligible right now. A reading
// qualifies when its USD value is known and below thresholdUSD, and its alert
// key is past the cooldown window. Eligible keys are stamped into state with
// the batch's now immediately; suppressed keys keep their old timestamp.
// Readings with an unknown value (failed reads) never alert and never touch
// state. Input order is preserved in the result.
func Evaluate(readings []chains.BalanceReading, thresholdUSD decimal.Decimal, cooldown time.Duration, now time.Time, state storage.CooldownState) []chains.BalanceReading {
	nowMs := now.UnixMilli()
	cooldownMs := cooldown.Milliseconds()

	var eligible []chains.BalanceReading
	for _, reading := range readings {
		if reading.ValueUSD == nil {
			continue
		}
		if !reading.ValueUSD.LessThan(thresholdUSD) {
			continue
		}

		elapsed := nowMs - state[reading.Key]
		if elapsed <= cooldownMs {
			continue
		}

		state[reading.Key] = nowMs
		eligible = append(eligible, reading)
	}
	return eligible
}
