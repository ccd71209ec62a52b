package chains

import (
	"github.com/shopspring/decimal"
)

// SolanaKey is the fixed alert key used for the Solana wallet.
const SolanaKey = "solana"

// EVMChain describes one account-model network sharing the EVM wallet address.
type EVMChain struct {
	Key     string
	Name    string
	Symbol  string
	PriceID string
	RPCURL  string
}

// SolanaChain describes the Solana endpoint.
type SolanaChain struct {
	Name    string
	Symbol  string
	PriceID string
	RPCURL  string
}

// BalanceReading is the outcome of one balance check. Balance and ValueUSD
// are nil together: a failed read carries Err and contributes price zero.
type BalanceReading struct {
	Key      string
	Name     string
	Symbol   string
	Address  string
	Balance  *decimal.Decimal
	Price    decimal.Decimal
	ValueUSD *decimal.Decimal
	Err      string
}

// OK reports whether the balance was actually read.
func (r BalanceReading) OK() bool {
	return r.Balance != nil
}

func successReading(key, name, symbol, address string, balance, price decimal.Decimal) BalanceReading {
	value := balance.Mul(price)
	return BalanceReading{
		Key:      key,
		Name:     name,
		Symbol:   symbol,
		Address:  address,
		Balance:  &balance,
		Price:    price,
		ValueUSD: &value,
	}
}

func failedReading(key, name, symbol, address string, err error) BalanceReading {
	return BalanceReading{
		Key:     key,
		Name:    name,
		Symbol:  symbol,
		Address: address,
		Price:   decimal.Zero,
		Err:     err.Error(),
	}
}
