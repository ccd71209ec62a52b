package alerting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"balance-sentinel/internal/chains"
	"balance-sentinel/internal/storage"
)

func lowReading(key string, valueUSD float64) chains.BalanceReading {
	value := decimal.NewFromFloat(valueUSD)
	balance := value
	return chains.BalanceReading{
		Key:      key,
		Name:     key,
		Symbol:   "TOK",
		Address:  "0x0000000000000000000000000000000000000001",
		Balance:  &balance,
		Price:    decimal.NewFromInt(1),
		ValueUSD: &value,
	}
}

func failedRead(key string) chains.BalanceReading {
	return chains.BalanceReading{Key: key, Name: key, Symbol: "TOK", Err: "rpc down"}
}

func TestEvaluateFirstAlertStampsCooldown(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state := storage.CooldownState{}

	eligible := Evaluate(
		[]chains.BalanceReading{lowReading("ethereum", 30)},
		decimal.NewFromInt(50), 6*time.Hour, now, state,
	)

	if len(eligible) != 1 {
		t.Fatalf("expected 1 eligible reading, got %d", len(eligible))
	}
	if state["ethereum"] != now.UnixMilli() {
		t.Fatalf("cooldown not stamped with batch time: %d", state["ethereum"])
	}
}

func TestEvaluateSuppressedWithinCooldown(t *testing.T) {
	first := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state := storage.CooldownState{"ethereum": first.UnixMilli()}

	later := first.Add(time.Hour)
	eligible := Evaluate(
		[]chains.BalanceReading{lowReading("ethereum", 30)},
		decimal.NewFromInt(50), 6*time.Hour, later, state,
	)

	if len(eligible) != 0 {
		t.Fatalf("expected suppression 1h into a 6h cooldown, got %d eligible", len(eligible))
	}
	if state["ethereum"] != first.UnixMilli() {
		t.Fatal("suppressed key's timestamp must not change")
	}
}

func TestEvaluateAlertsAgainAfterCooldown(t *testing.T) {
	first := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state := storage.CooldownState{"ethereum": first.UnixMilli()}

	later := first.Add(7 * time.Hour)
	eligible := Evaluate(
		[]chains.BalanceReading{lowReading("ethereum", 30)},
		decimal.NewFromInt(50), 6*time.Hour, later, state,
	)

	if len(eligible) != 1 {
		t.Fatalf("expected alert 7h into a 6h cooldown, got %d eligible", len(eligible))
	}
	if state["ethereum"] != later.UnixMilli() {
		t.Fatal("re-alerted key must carry the new batch time")
	}
}

func TestEvaluateIgnoresFailedReads(t *testing.T) {
	now := time.Now().UTC()
	state := storage.CooldownState{}

	eligible := Evaluate(
		[]chains.BalanceReading{failedRead("polygon")},
		decimal.NewFromInt(50), 6*time.Hour, now, state,
	)

	if len(eligible) != 0 {
		t.Fatal("failed reads must never be alert-eligible")
	}
	if _, ok := state["polygon"]; ok {
		t.Fatal("failed reads must not touch cooldown state")
	}
}

func TestEvaluateAboveThresholdNotEligible(t *testing.T) {
	now := time.Now().UTC()
	state := storage.CooldownState{}

	eligible := Evaluate(
		[]chains.BalanceReading{lowReading("ethereum", 80), lowReading("bsc", 50)},
		decimal.NewFromInt(50), 6*time.Hour, now, state,
	)

	if len(eligible) != 0 {
		t.Fatalf("values at or above threshold must not alert, got %d", len(eligible))
	}
	if len(state) != 0 {
		t.Fatal("state must stay empty when nothing alerts")
	}
}

func TestEvaluatePreservesInputOrder(t *testing.T) {
	now := time.Now().UTC()
	state := storage.CooldownState{}

	eligible := Evaluate(
		[]chains.BalanceReading{
			lowReading("ethereum", 10),
			lowReading("polygon", 90),
			failedRead("bsc"),
			lowReading("solana", 20),
		},
		decimal.NewFromInt(50), 6*time.Hour, now, state,
	)

	if len(eligible) != 2 {
		t.Fatalf("expected 2 eligible readings, got %d", len(eligible))
	}
	if eligible[0].Key != "ethereum" || eligible[1].Key != "solana" {
		t.Fatalf("input order not preserved: %s, %s", eligible[0].Key, eligible[1].Key)
	}
}
