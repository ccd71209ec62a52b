package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"balance-sentinel/internal/alerting"
	"balance-sentinel/internal/chains"
	"balance-sentinel/internal/config"
	"balance-sentinel/internal/pricing"
	"balance-sentinel/internal/scheduler"
	"balance-sentinel/internal/storage"
)

// Service orchestrates one check cycle: prices, balance fan-out, alert
// evaluation, notification, and state persistence.
type Service struct {
	scheduler *scheduler.Scheduler
	oracle    pricing.Oracle
	evm       chains.EVMBalanceReader
	solana    chains.SolanaBalanceReader
	store     storage.StateStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	thresholdUSD  decimal.Decimal
	cooldown      time.Duration
	evmChains     []chains.EVMChain
	solanaChain   *chains.SolanaChain
	evmAddress    string
	solanaAddress string
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, oracle pricing.Oracle, evm chains.EVMBalanceReader, solana chains.SolanaBalanceReader, store storage.StateStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	evmChains := make([]chains.EVMChain, 0, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		evmChains = append(evmChains, chains.EVMChain{
			Key:     chain.Key,
			Name:    chain.Name,
			Symbol:  chain.Symbol,
			PriceID: chain.PriceID,
			RPCURL:  chain.RPCURL,
		})
	}

	var solanaChain *chains.SolanaChain
	if cfg.Solana.Enabled {
		solanaChain = &chains.SolanaChain{
			Name:    cfg.Solana.Name,
			Symbol:  cfg.Solana.Symbol,
			PriceID: cfg.Solana.PriceID,
			RPCURL:  cfg.Solana.RPCURL,
		}
	}

	return &Service{
		scheduler:     sched,
		oracle:        oracle,
		evm:           evm,
		solana:        solana,
		store:         store,
		notifier:      notifier,
		logger:        logger.With().Str("component", "service").Logger(),
		thresholdUSD:  decimal.NewFromFloat(cfg.Monitor.ThresholdUSD),
		cooldown:      cfg.Monitor.Cooldown,
		evmChains:     evmChains,
		solanaChain:   solanaChain,
		evmAddress:    cfg.Monitor.EVMAddress,
		solanaAddress: cfg.Monitor.SolanaAddress,
	}
}

// Run begins the scheduled check loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.RunCycle)
}

// RunCycle executes one full check. A price fetch failure aborts the cycle
// before any balance read or state write; every later stage degrades locally
// instead of failing the cycle.
func (s *Service) RunCycle(ctx context.Context, now time.Time) error {
	prices, err := s.oracle.FetchPrices(ctx, s.priceIDs())
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	state, err := s.store.LoadCooldowns(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cooldown state unavailable, starting from empty")
		state = nil
	}
	if state == nil {
		state = storage.CooldownState{}
	}

	readings := s.readBalances(ctx, prices)

	eligible := alerting.Evaluate(readings, s.thresholdUSD, s.cooldown, now, state)

	if len(eligible) > 0 && s.notifier != nil {
		note := alerting.Notification{
			Readings:     eligible,
			ThresholdUSD: s.thresholdUSD,
			CheckedAt:    now,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Int("wallets", len(eligible)).Msg("failed to dispatch alert")
		}
	}

	// Saved even when nothing fired so the durable copy tracks every
	// in-memory decision.
	if err := s.store.SaveCooldowns(ctx, state); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist cooldown state")
	}

	if err := s.store.PublishStatus(ctx, s.buildSnapshot(now, prices, readings)); err != nil {
		s.logger.Error().Err(err).Msg("failed to publish status snapshot")
	}

	s.logger.Info().
		Int("chains", len(readings)).
		Int("below_threshold", s.countBelowThreshold(readings)).
		Int("alerted", len(eligible)).
		Msg("check cycle complete")
	return nil
}

func (s *Service) priceIDs() []string {
	ids := make([]string, 0, len(s.evmChains)+1)
	for _, chain := range s.evmChains {
		ids = append(ids, chain.PriceID)
	}
	if s.solanaChain != nil {
		ids = append(ids, s.solanaChain.PriceID)
	}
	return ids
}

// readBalances fans out one read per configured chain and joins the results
// in configuration order (EVM chains first, Solana last).
func (s *Service) readBalances(ctx context.Context, prices map[string]decimal.Decimal) []chains.BalanceReading {
	total := len(s.evmChains)
	if s.solanaChain != nil {
		total++
	}

	readings := make([]chains.BalanceReading, total)
	var wg sync.WaitGroup

	for i, chain := range s.evmChains {
		wg.Add(1)
		go func(i int, chain chains.EVMChain) {
			defer wg.Done()
			readings[i] = s.evm.Read(ctx, chain, s.evmAddress, prices[chain.PriceID])
		}(i, chain)
	}

	if s.solanaChain != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			readings[total-1] = s.solana.Read(ctx, *s.solanaChain, s.solanaAddress, prices[s.solanaChain.PriceID])
		}()
	}

	wg.Wait()
	return readings
}

func (s *Service) buildSnapshot(now time.Time, prices map[string]decimal.Decimal, readings []chains.BalanceReading) storage.StatusSnapshot {
	statuses := make([]storage.ChainStatus, 0, len(readings))
	for _, reading := range readings {
		statuses = append(statuses, storage.ChainStatus{
			Chain:          reading.Name,
			Symbol:         reading.Symbol,
			Balance:        reading.Balance,
			ValueUSD:       reading.ValueUSD,
			BelowThreshold: s.isBelowThreshold(reading),
			Error:          reading.Err,
		})
	}
	return storage.StatusSnapshot{
		Timestamp: now.UTC(),
		Prices:    prices,
		Chains:    statuses,
	}
}

func (s *Service) isBelowThreshold(reading chains.BalanceReading) bool {
	return reading.ValueUSD != nil && reading.ValueUSD.LessThan(s.thresholdUSD)
}

func (s *Service) countBelowThreshold(readings []chains.BalanceReading) int {
	count := 0
	for _, reading := range readings {
		if s.isBelowThreshold(reading) {
			count++
		}
	}
	return count
}
