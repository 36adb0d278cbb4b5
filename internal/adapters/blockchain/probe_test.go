package blockchain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct {
	chainErr, headErr error
}

func (f failingReader) ChainID(context.Context) (*big.Int, error) {
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return big.NewInt(8795), nil
}

func (f failingReader) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return nil, f.headErr
}

func TestProbe(t *testing.T) {
	ctx := context.Background()

	t.Run("simulated chain", func(t *testing.T) {
		sim := simulated.NewBackend(types.GenesisAlloc{})
		t.Cleanup(func() { _ = sim.Close() })
		sim.Commit()
		sim.Commit()

		status, err := probe(ctx, sim.Client())
		require.NoError(t, err)
		assert.Equal(t, uint64(1337), status.ChainID)
		assert.Equal(t, uint64(2), status.BlockNumber)
		assert.WithinDuration(t, time.Now(), status.BlockTime, time.Hour)
	})

	tests := []struct {
		name    string
		reader  failingReader
		wantErr string
	}{
		{"chain id", failingReader{chainErr: errors.New("refused")}, "failed to get chain ID: refused"},
		{"head", failingReader{headErr: errors.New("pruned")}, "failed to get latest block: pruned"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := probe(ctx, tt.reader)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
