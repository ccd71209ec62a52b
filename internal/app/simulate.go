package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"balance-sentinel/internal/alerting"
	"balance-sentinel/internal/chains"
	"balance-sentinel/internal/storage"
)

// SimulateAlert pushes a synthetic below-threshold reading through the real
// evaluator and notifier path without touching chains or durable state.
func (a *App) SimulateAlert(ctx context.Context, chainName string, valueUSD float64) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	threshold := decimal.NewFromFloat(a.Config.Monitor.ThresholdUSD)
	value := decimal.NewFromFloat(valueUSD)
	balance := value

	reading := chains.BalanceReading{
		Key:      "simulated",
		Name:     chainName,
		Symbol:   "TEST",
		Address:  a.Config.Monitor.EVMAddress,
		Balance:  &balance,
		Price:    decimal.NewFromInt(1),
		ValueUSD: &value,
	}

	now := time.Now().UTC()
	eligible := alerting.Evaluate([]chains.BalanceReading{reading}, threshold, a.Config.Monitor.Cooldown, now, storage.CooldownState{})
	if len(eligible) == 0 {
		return fmt.Errorf("value $%s is not below threshold $%s", value.StringFixed(2), threshold.StringFixed(2))
	}

	return notifier.Notify(ctx, alerting.Notification{
		Readings:     eligible,
		ThresholdUSD: threshold,
		CheckedAt:    now,
	})
}
