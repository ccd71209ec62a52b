package chains

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EVMOptions parameterise the EVM balance reader.
type EVMOptions struct {
	Timeout time.Duration
}

// EVMReader reads native balances over Ethereum-style RPC. Dialled clients
// are cached per endpoint for the process lifetime.
type EVMReader struct {
	opts      EVMOptions
	logger    zerolog.Logger
	clients   map[string]*ethclient.Client
	clientMux sync.Mutex
}

// NewEVMReader builds an EVM balance reader.
func NewEVMReader(opts EVMOptions, logger zerolog.Logger) *EVMReader {
	return &EVMReader{
		opts:    opts,
		logger:  logger.With().Str("component", "evm_reader").Logger(),
		clients: make(map[string]*ethclient.Client),
	}
}

// Read fetches the native balance of address on the given chain and converts
// wei to whole units. Any failure is captured into the reading so one chain's
// outage cannot abort the rest of the cycle.
func (r *EVMReader) Read(ctx context.Context, chain EVMChain, address string, price decimal.Decimal) BalanceReading {
	if chain.RPCURL == "" {
		return failedReading(chain.Key, chain.Name, chain.Symbol, address, errors.New("rpc url not configured"))
	}
	if address == "" {
		return failedReading(chain.Key, chain.Name, chain.Symbol, address, errors.New("wallet address not configured"))
	}

	timeout := r.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := r.getClient(ctx, chain.RPCURL)
	if err != nil {
		r.logger.Warn().Err(err).Str("chain", chain.Key).Msg("rpc dial failed")
		return failedReading(chain.Key, chain.Name, chain.Symbol, address, err)
	}

	wei, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		r.logger.Warn().Err(err).Str("chain", chain.Key).Msg("balance query failed")
		return failedReading(chain.Key, chain.Name, chain.Symbol, address, err)
	}

	balance := decimal.NewFromBigInt(wei, -18)
	return successReading(chain.Key, chain.Name, chain.Symbol, address, balance, price)
}

func (r *EVMReader) getClient(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	r.clientMux.Lock()
	defer r.clientMux.Unlock()

	if client, ok := r.clients[rpcURL]; ok {
		return client, nil
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	r.clients[rpcURL] = client
	return client, nil
}

// Close releases all cached RPC clients.
func (r *EVMReader) Close() {
	r.clientMux.Lock()
	defer r.clientMux.Unlock()
	for _, client := range r.clients {
		client.Close()
	}
	r.clients = make(map[string]*ethclient.Client)
}
