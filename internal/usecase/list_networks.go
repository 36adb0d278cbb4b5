package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// probeTimeout bounds the live lookup of one network
const probeTimeout = 10 * time.Second

// ListNetworksParams contains parameters for listing networks
type ListNetworksParams struct {
	// Offline skips the live lookup
	Offline bool
}

// ListNetworksResult contains the result of listing networks
type ListNetworksResult struct {
	Networks []NetworkStatus
}

// NetworkStatus represents the status of a network
type NetworkStatus struct {
	Name string
	URL  string
	// ChainID is the configured chain id, zero when not configured
	ChainID uint64
	// LiveChainID is reported by the RPC endpoint
	LiveChainID uint64
	// Head is the latest block seen by the endpoint, nil when offline or unreachable
	Head   *ChainStatus
	Signer string
	Error  error
}

// Mismatch reports whether the endpoint serves a different chain than configured
func (s NetworkStatus) Mismatch() bool {
	return s.ChainID != 0 && s.LiveChainID != 0 && s.ChainID != s.LiveChainID
}

// ListNetworks is a use case for listing available networks
type ListNetworks struct {
	resolver NetworkResolver
	probe    ChainProbe
}

// NewListNetworks creates a new ListNetworks use case
func NewListNetworks(resolver NetworkResolver, probe ChainProbe) *ListNetworks {
	return &ListNetworks{
		resolver: resolver,
		probe:    probe,
	}
}

// Run executes the use case
func (uc *ListNetworks) Run(ctx context.Context, params ListNetworksParams) (*ListNetworksResult, error) {
	// Get all configured networks
	networkNames := uc.resolver.GetNetworks(ctx)

	networks := make([]NetworkStatus, len(networkNames))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range networkNames {
		networks[i].Name = name

		info, err := uc.resolver.ResolveNetwork(ctx, name)
		if err != nil {
			networks[i].Error = err
			continue
		}
		networks[i].URL = info.RPCURL
		networks[i].ChainID = info.ChainID
		networks[i].Signer = info.Signer

		if params.Offline {
			continue
		}

		// Each goroutine writes only its own slot; lookup failures are reported per network
		g.Go(func() error {
			lookupCtx, cancel := context.WithTimeout(gctx, probeTimeout)
			defer cancel()

			status, err := uc.probe.Probe(lookupCtx, info.RPCURL)
			if err != nil {
				networks[i].Error = fmt.Errorf("rpc unreachable: %w", err)
				return nil
			}
			networks[i].LiveChainID = status.ChainID
			networks[i].Head = status
			if networks[i].Mismatch() {
				networks[i].Error = fmt.Errorf("endpoint serves chain %d, configured %d", status.ChainID, info.ChainID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ListNetworksResult{
		Networks: networks,
	}, nil
}
