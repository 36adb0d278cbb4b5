package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/sahilm/fuzzy"
	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// NetworkResolver resolves network names to their treb.toml configuration
type NetworkResolver struct {
	networks map[string]*config.Network
}

// NewNetworkResolver creates a new network resolver
func NewNetworkResolver(cfg *config.RuntimeConfig) *NetworkResolver {
	return &NetworkResolver{networks: cfg.Networks}
}

// Resolve returns the configuration of a network. Unknown names get a
// suggestion when one of the configured names is close.
func (r *NetworkResolver) Resolve(name string) (*config.Network, error) {
	network, ok := r.networks[name]
	if !ok {
		msg := fmt.Sprintf("network %q is not configured in %s", name, TrebFileName)
		if matches := fuzzy.Find(name, r.Names()); len(matches) > 0 {
			msg += fmt.Sprintf(" (did you mean %q?)", matches[0].Str)
		}
		return nil, fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	if network.RPCURL == "" {
		return nil, fmt.Errorf("network %q has no url", name)
	}
	return network, nil
}

// Names returns the configured network names in sorted order
func (r *NetworkResolver) Names() []string {
	names := make([]string, 0, len(r.networks))
	for name := range r.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetNetworks implements usecase.NetworkResolver
func (r *NetworkResolver) GetNetworks(context.Context) []string {
	return r.Names()
}

// ResolveNetwork implements usecase.NetworkResolver
func (r *NetworkResolver) ResolveNetwork(_ context.Context, name string) (*config.Network, error) {
	return r.Resolve(name)
}

var _ usecase.NetworkResolver = (*NetworkResolver)(nil)
