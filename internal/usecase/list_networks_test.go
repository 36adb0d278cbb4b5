package usecase_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

type sortedNetworks struct{ staticNetworks }

func (n sortedNetworks) GetNetworks(ctx context.Context) []string {
	names := n.staticNetworks.GetNetworks(ctx)
	sort.Strings(names)
	return names
}

func TestListNetworks(t *testing.T) {
	ctx := context.Background()
	networks := sortedNetworks{staticNetworks{
		"bsc":     {Name: "bsc", RPCURL: "https://bsc-dataseed.binance.org/", ChainID: 56, Signer: "PRIVATE_KEY"},
		"private": {Name: "private", RPCURL: "https://blockchain.servers.web.tr/", ChainID: 8795, Signer: "PRIVATE_KEY"},
		"local":   {Name: "local", RPCURL: "http://localhost:8545", Signer: "PRIVATE_KEY"},
	}}

	t.Run("live chain ids", func(t *testing.T) {
		probe := &MockChainProbe{}
		probe.On("Probe", mock.Anything, "https://bsc-dataseed.binance.org/").Return(&usecase.ChainStatus{ChainID: 56, BlockNumber: 48_000_000}, nil)
		probe.On("Probe", mock.Anything, "https://blockchain.servers.web.tr/").Return(&usecase.ChainStatus{ChainID: 1, BlockNumber: 10}, nil)
		probe.On("Probe", mock.Anything, "http://localhost:8545").Return(nil, errors.New("connection refused"))

		result, err := usecase.NewListNetworks(networks, probe).Run(ctx, usecase.ListNetworksParams{})
		require.NoError(t, err)
		require.Len(t, result.Networks, 3)

		bsc, local, private := result.Networks[0], result.Networks[1], result.Networks[2]

		assert.Equal(t, "bsc", bsc.Name)
		assert.Equal(t, uint64(56), bsc.LiveChainID)
		require.NotNil(t, bsc.Head)
		assert.Equal(t, uint64(48_000_000), bsc.Head.BlockNumber)
		assert.NoError(t, bsc.Error)

		assert.Equal(t, "local", local.Name)
		assert.Nil(t, local.Head)
		require.Error(t, local.Error)
		assert.Contains(t, local.Error.Error(), "connection refused")

		assert.Equal(t, "private", private.Name)
		assert.True(t, private.Mismatch())
		require.Error(t, private.Error)
		assert.Contains(t, private.Error.Error(), "configured 8795")
	})

	t.Run("offline", func(t *testing.T) {
		probe := &MockChainProbe{}

		result, err := usecase.NewListNetworks(networks, probe).Run(ctx, usecase.ListNetworksParams{Offline: true})
		require.NoError(t, err)
		require.Len(t, result.Networks, 3)
		assert.Equal(t, uint64(56), result.Networks[0].ChainID)
		probe.AssertNotCalled(t, "Probe", mock.Anything, mock.Anything)
	})
}

func TestNetworkStatus_Mismatch(t *testing.T) {
	assert.False(t, usecase.NetworkStatus{ChainID: 0, LiveChainID: 5}.Mismatch())
	assert.False(t, usecase.NetworkStatus{ChainID: 5, LiveChainID: 5}.Mismatch())
	assert.True(t, usecase.NetworkStatus{ChainID: 5, LiveChainID: 6}.Mismatch())
}

var _ usecase.NetworkResolver = sortedNetworks{staticNetworks: staticNetworks{"x": &config.Network{}}}
