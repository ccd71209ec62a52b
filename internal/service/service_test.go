package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"balance-sentinel/internal/alerting"
	"balance-sentinel/internal/chains"
	"balance-sentinel/internal/config"
	"balance-sentinel/internal/storage"
)

type stubOracle struct {
	prices map[string]decimal.Decimal
	err    error
	calls  int
}

func (s *stubOracle) FetchPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.prices, nil
}

// stubEVM returns the configured balance per chain key; keys without an
// entry fail the read.
type stubEVM struct {
	mu       sync.Mutex
	balances map[string]float64
	calls    int
}

func (s *stubEVM) Read(ctx context.Context, chain chains.EVMChain, address string, price decimal.Decimal) chains.BalanceReading {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	bal, ok := s.balances[chain.Key]
	if !ok {
		return chains.BalanceReading{Key: chain.Key, Name: chain.Name, Symbol: chain.Symbol, Address: address, Err: "rpc down"}
	}
	balance := decimal.NewFromFloat(bal)
	value := balance.Mul(price)
	return chains.BalanceReading{Key: chain.Key, Name: chain.Name, Symbol: chain.Symbol, Address: address, Balance: &balance, Price: price, ValueUSD: &value}
}

type stubSolana struct {
	balance float64
	fail    bool
}

func (s *stubSolana) Read(ctx context.Context, chain chains.SolanaChain, address string, price decimal.Decimal) chains.BalanceReading {
	if s.fail {
		return chains.BalanceReading{Key: chains.SolanaKey, Name: chain.Name, Symbol: chain.Symbol, Address: address, Err: "rpc down"}
	}
	balance := decimal.NewFromFloat(s.balance)
	value := balance.Mul(price)
	return chains.BalanceReading{Key: chains.SolanaKey, Name: chain.Name, Symbol: chain.Symbol, Address: address, Balance: &balance, Price: price, ValueUSD: &value}
}

type memStore struct {
	cooldowns  storage.CooldownState
	loadErr    error
	publishErr error
	saved      []storage.CooldownState
	published  []storage.StatusSnapshot
}

func (m *memStore) LoadCooldowns(ctx context.Context) (storage.CooldownState, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.cooldowns == nil {
		return storage.CooldownState{}, nil
	}
	return m.cooldowns, nil
}

func (m *memStore) SaveCooldowns(ctx context.Context, state storage.CooldownState) error {
	copied := storage.CooldownState{}
	for k, v := range state {
		copied[k] = v
	}
	m.saved = append(m.saved, copied)
	return nil
}

func (m *memStore) PublishStatus(ctx context.Context, snapshot storage.StatusSnapshot) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, snapshot)
	return nil
}

func (m *memStore) LoadStatus(ctx context.Context) (*storage.StatusSnapshot, error) {
	if len(m.published) == 0 {
		return nil, nil
	}
	latest := m.published[len(m.published)-1]
	return &latest, nil
}

type stubNotifier struct {
	notes []alerting.Notification
	err   error
}

func (s *stubNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	s.notes = append(s.notes, note)
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{
		Monitor: config.MonitorConfig{
			ThresholdUSD:  50,
			Cooldown:      6 * time.Hour,
			EVMAddress:    "0x1234567890abcdef1234567890abcdef12345678",
			SolanaAddress: "SoLAddr111111111111111111111111111111111111",
		},
		Chains: []config.ChainConfig{
			{Key: "ethereum", Name: "Ethereum", Symbol: "ETH", PriceID: "ethereum", RPCURL: "http://eth"},
			{Key: "polygon", Name: "Polygon", Symbol: "POL", PriceID: "matic-network", RPCURL: "http://poly"},
		},
		Solana: config.SolanaConfig{Enabled: true, Name: "Solana", Symbol: "SOL", PriceID: "solana", RPCURL: "http://sol"},
	}
}

func unitPrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"ethereum":      decimal.NewFromInt(1),
		"matic-network": decimal.NewFromInt(1),
		"solana":        decimal.NewFromInt(1),
	}
}

func TestRunCyclePriceFailureAbortsEverything(t *testing.T) {
	oracle := &stubOracle{err: errors.New("price api down")}
	evm := &stubEVM{balances: map[string]float64{"ethereum": 30}}
	store := &memStore{}
	notifier := &stubNotifier{}

	svc := New(testConfig(), nil, oracle, evm, &stubSolana{balance: 100}, store, notifier, zerolog.Nop())

	if err := svc.RunCycle(context.Background(), time.Now().UTC()); err == nil {
		t.Fatal("price failure must abort the cycle")
	}
	if evm.calls != 0 {
		t.Fatal("no balance reads after a price failure")
	}
	if len(store.saved) != 0 || len(store.published) != 0 {
		t.Fatal("no state writes after a price failure")
	}
	if len(notifier.notes) != 0 {
		t.Fatal("no alerts after a price failure")
	}
}

func TestRunCycleAlertsAndPersists(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	oracle := &stubOracle{prices: unitPrices()}
	evm := &stubEVM{balances: map[string]float64{"ethereum": 30, "polygon": 100}}
	store := &memStore{}
	notifier := &stubNotifier{}

	svc := New(testConfig(), nil, oracle, evm, &stubSolana{fail: true}, store, notifier, zerolog.Nop())

	if err := svc.RunCycle(context.Background(), now); err != nil {
		t.Fatalf("cycle should succeed despite one failing chain: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected one composite alert, got %d", len(notifier.notes))
	}
	note := notifier.notes[0]
	if len(note.Readings) != 1 || note.Readings[0].Key != "ethereum" {
		t.Fatalf("only the low ethereum wallet should alert: %#v", note.Readings)
	}

	if len(store.saved) != 1 {
		t.Fatalf("cooldowns must be saved once, got %d", len(store.saved))
	}
	state := store.saved[0]
	if state["ethereum"] != now.UnixMilli() {
		t.Fatalf("alerted key must be stamped with the cycle time: %#v", state)
	}
	if _, ok := state["polygon"]; ok {
		t.Fatal("healthy wallets must not enter cooldown state")
	}
	if _, ok := state[chains.SolanaKey]; ok {
		t.Fatal("failed reads must not enter cooldown state")
	}

	if len(store.published) != 1 {
		t.Fatalf("status must be published once, got %d", len(store.published))
	}
	snapshot := store.published[0]
	if len(snapshot.Chains) != 3 {
		t.Fatalf("snapshot must cover every configured chain, got %d", len(snapshot.Chains))
	}
	if snapshot.Chains[0].Chain != "Ethereum" || snapshot.Chains[1].Chain != "Polygon" || snapshot.Chains[2].Chain != "Solana" {
		t.Fatalf("snapshot must preserve configuration order: %#v", snapshot.Chains)
	}
	if !snapshot.Chains[0].BelowThreshold {
		t.Fatal("ethereum should be flagged below threshold")
	}
	if snapshot.Chains[1].BelowThreshold {
		t.Fatal("polygon should not be flagged")
	}
	solanaStatus := snapshot.Chains[2]
	if solanaStatus.Balance != nil || solanaStatus.ValueUSD != nil || solanaStatus.BelowThreshold {
		t.Fatalf("failed solana read must surface null balance, not a flag: %#v", solanaStatus)
	}
	if solanaStatus.Error == "" {
		t.Fatal("failed read must carry its error in the snapshot")
	}
}

func TestRunCycleNoAlertStillSavesCooldowns(t *testing.T) {
	oracle := &stubOracle{prices: unitPrices()}
	evm := &stubEVM{balances: map[string]float64{"ethereum": 100, "polygon": 100}}
	store := &memStore{}
	notifier := &stubNotifier{}

	svc := New(testConfig(), nil, oracle, evm, &stubSolana{balance: 100}, store, notifier, zerolog.Nop())

	if err := svc.RunCycle(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("nothing below threshold, no alert expected")
	}
	if len(store.saved) != 1 {
		t.Fatal("cooldown state must be persisted even when nothing fires")
	}
	if len(store.published) != 1 {
		t.Fatal("status must be published even when nothing fires")
	}
}

func TestRunCycleSuppressedByCooldown(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	lastAlert := now.Add(-time.Hour)

	oracle := &stubOracle{prices: unitPrices()}
	evm := &stubEVM{balances: map[string]float64{"ethereum": 30, "polygon": 100}}
	store := &memStore{cooldowns: storage.CooldownState{"ethereum": lastAlert.UnixMilli()}}
	notifier := &stubNotifier{}

	svc := New(testConfig(), nil, oracle, evm, &stubSolana{balance: 100}, store, notifier, zerolog.Nop())

	if err := svc.RunCycle(context.Background(), now); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("alert 1h into a 6h cooldown must be suppressed")
	}
	if store.saved[0]["ethereum"] != lastAlert.UnixMilli() {
		t.Fatal("suppressed key must keep its previous timestamp")
	}
}

func TestRunCycleNotifierFailureDoesNotAbort(t *testing.T) {
	oracle := &stubOracle{prices: unitPrices()}
	evm := &stubEVM{balances: map[string]float64{"ethereum": 30, "polygon": 100}}
	store := &memStore{}
	notifier := &stubNotifier{err: errors.New("telegram down")}

	svc := New(testConfig(), nil, oracle, evm, &stubSolana{balance: 100}, store, notifier, zerolog.Nop())

	if err := svc.RunCycle(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("delivery failure must not fail the cycle: %v", err)
	}
	if len(store.saved) != 1 || len(store.published) != 1 {
		t.Fatal("persistence must proceed despite a delivery failure")
	}
}

func TestRunCyclePublishFailureDoesNotAbort(t *testing.T) {
	oracle := &stubOracle{prices: unitPrices()}
	evm := &stubEVM{balances: map[string]float64{"ethereum": 100, "polygon": 100}}
	store := &memStore{publishErr: errors.New("disk full")}

	svc := New(testConfig(), nil, oracle, evm, &stubSolana{balance: 100}, store, &stubNotifier{}, zerolog.Nop())

	if err := svc.RunCycle(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("publish failure must not fail the cycle: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatal("cooldowns must still be saved")
	}
}

func TestRunCycleCooldownLoadErrorProceedsEmpty(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	oracle := &stubOracle{prices: unitPrices()}
	evm := &stubEVM{balances: map[string]float64{"ethereum": 30, "polygon": 100}}
	store := &memStore{loadErr: errors.New("db unreachable")}
	notifier := &stubNotifier{}

	svc := New(testConfig(), nil, oracle, evm, &stubSolana{balance: 100}, store, notifier, zerolog.Nop())

	if err := svc.RunCycle(context.Background(), now); err != nil {
		t.Fatalf("cooldown load failure must not fail the cycle: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatal("with empty fallback state, the low wallet should alert")
	}
	if store.saved[0]["ethereum"] != now.UnixMilli() {
		t.Fatal("fresh state must be persisted after the fallback")
	}
}

func TestReadBalancesPreservesConfigurationOrder(t *testing.T) {
	oracle := &stubOracle{prices: unitPrices()}
	evm := &stubEVM{balances: map[string]float64{"ethereum": 1, "polygon": 2}}

	svc := New(testConfig(), nil, oracle, evm, &stubSolana{balance: 3}, &memStore{}, nil, zerolog.Nop())

	readings := svc.readBalances(context.Background(), unitPrices())
	if len(readings) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(readings))
	}
	if readings[0].Key != "ethereum" || readings[1].Key != "polygon" || readings[2].Key != chains.SolanaKey {
		t.Fatalf("order not preserved: %s, %s, %s", readings[0].Key, readings[1].Key, readings[2].Key)
	}
}
