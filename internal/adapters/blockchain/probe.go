package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// headReader is the subset of an RPC client a probe reads from
type headReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// RPCProbe asks network endpoints which chain they serve and how far it has progressed
type RPCProbe struct{}

// NewRPCProbe creates a new RPC probe
func NewRPCProbe() *RPCProbe {
	return &RPCProbe{}
}

// Probe dials the endpoint and reads its chain ID and latest header
func (p *RPCProbe) Probe(ctx context.Context, rpcURL string) (*usecase.ChainStatus, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	defer client.Close()

	return probe(ctx, client)
}

func probe(ctx context.Context, reader headReader) (*usecase.ChainStatus, error) {
	start := time.Now()
	chainID, err := reader.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	latency := time.Since(start)

	head, err := reader.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block: %w", err)
	}

	return &usecase.ChainStatus{
		ChainID:     chainID.Uint64(),
		BlockNumber: head.Number.Uint64(),
		BlockTime:   time.Unix(int64(head.Time), 0),
		Latency:     latency,
	}, nil
}

var _ usecase.ChainProbe = (*RPCProbe)(nil)
