package chains

import (
	"context"

	"github.com/shopspring/decimal"
)

// EVMBalanceReader reads the native balance of an address on one EVM chain.
type EVMBalanceReader interface {
	Read(ctx context.Context, chain EVMChain, address string, price decimal.Decimal) BalanceReading
}

// SolanaBalanceReader reads the native balance of a Solana address.
type SolanaBalanceReader interface {
	Read(ctx context.Context, chain SolanaChain, address string, price decimal.Decimal) BalanceReading
}

var (
	_ EVMBalanceReader    = (*EVMReader)(nil)
	_ SolanaBalanceReader = (*SolanaReader)(nil)
)
