package chains

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SolanaOptions parameterise the Solana balance reader.
type SolanaOptions struct {
	Timeout time.Duration
}

// SolanaReader reads native balances via the Solana JSON-RPC getBalance call.
type SolanaReader struct {
	opts   SolanaOptions
	logger zerolog.Logger
	client *http.Client
}

// NewSolanaReader builds a Solana balance reader.
func NewSolanaReader(opts SolanaOptions, logger zerolog.Logger) *SolanaReader {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SolanaReader{
		opts:   opts,
		logger: logger.With().Str("component", "solana_reader").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

type solanaRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type solanaRPCResponse struct {
	Result *struct {
		Value uint64 `json:"value"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Read fetches the lamport balance of address and converts it to SOL. Any
// failure is captured into the reading, same contract as the EVM reader.
func (r *SolanaReader) Read(ctx context.Context, chain SolanaChain, address string, price decimal.Decimal) BalanceReading {
	if chain.RPCURL == "" {
		return failedReading(SolanaKey, chain.Name, chain.Symbol, address, errors.New("rpc url not configured"))
	}
	if address == "" {
		return failedReading(SolanaKey, chain.Name, chain.Symbol, address, errors.New("wallet address not configured"))
	}

	lamports, err := r.getBalance(ctx, chain.RPCURL, address)
	if err != nil {
		r.logger.Warn().Err(err).Str("chain", SolanaKey).Msg("balance query failed")
		return failedReading(SolanaKey, chain.Name, chain.Symbol, address, err)
	}

	// 1 SOL = 1e9 lamports.
	balance := decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
	return successReading(SolanaKey, chain.Name, chain.Symbol, address, balance, price)
}

func (r *SolanaReader) getBalance(ctx context.Context, rpcURL, address string) (uint64, error) {
	body, err := json.Marshal(solanaRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getBalance",
		Params:  []any{address},
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("rpc http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out solanaRPCResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return 0, fmt.Errorf("decode rpc response: %w", err)
	}
	if out.Error != nil {
		return 0, fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	if out.Result == nil {
		return 0, errors.New("rpc response missing result")
	}
	return out.Result.Value, nil
}
