package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// Backend is the part of an RPC client the executor needs
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client sends deploy and invoke transactions signed with a local key
type Client struct {
	artifacts     *ArtifactStore
	confirmations uint64
	log           *slog.Logger

	// pollInterval paces the confirmation wait
	pollInterval time.Duration

	backend Backend
	closer  func()
	chainID *big.Int
	network string

	// nonces tracks the next nonce per sender so parallel steps do not collide
	nonceMu sync.Mutex
	nonces  map[common.Address]uint64
}

// NewClient creates a chain client. Connect must be called before use.
func NewClient(cfg *config.RuntimeConfig, artifacts *ArtifactStore, log *slog.Logger) *Client {
	confirmations := cfg.Confirmations
	if confirmations == 0 {
		confirmations = 1
	}
	return &Client{
		artifacts:     artifacts,
		confirmations: confirmations,
		log:           log.With("component", "ChainClient"),
		pollInterval:  time.Second,
		nonces:        make(map[common.Address]uint64),
	}
}

// Connect dials the network RPC and verifies it serves the configured chain
func (c *Client) Connect(ctx context.Context, network *config.Network) error {
	client, err := ethclient.DialContext(ctx, network.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}
	if err := c.attach(ctx, client, client.Close, network); err != nil {
		client.Close()
		return err
	}
	return nil
}

func (c *Client) attach(ctx context.Context, backend Backend, closer func(), network *config.Network) error {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	if network.ChainID != 0 && chainID.Uint64() != network.ChainID {
		return fmt.Errorf("chain ID mismatch: %s is configured as %d, RPC serves %d", network.Name, network.ChainID, chainID.Uint64())
	}

	c.backend = backend
	c.closer = closer
	c.chainID = chainID
	c.network = network.Name
	c.log.Debug("connected", "network", network.Name, "chainId", chainID)
	return nil
}

// Close releases the RPC connection
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
		c.closer = nil
	}
	c.backend = nil
}

// DeployContract deploys an artifact and waits for the receipt
func (c *Client) DeployContract(ctx context.Context, req domain.DeployRequest, signer domain.SignerConfig) (*domain.DeployReceipt, error) {
	if c.backend == nil {
		return nil, errors.New("not connected to a network")
	}

	art, err := c.artifacts.Find(req.Contract)
	if err != nil {
		return nil, err
	}
	if len(art.Bytecode) == 0 {
		return nil, fmt.Errorf("%s has no bytecode (abstract contract or interface?)", art.Key())
	}

	args, err := coerceArgs(art.ABI.Constructor.Inputs, req.Args)
	if err != nil {
		return nil, fmt.Errorf("constructor of %s: %w", art.Name, err)
	}
	input, err := art.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor of %s: %w", art.Name, err)
	}

	opts, err := c.transactOpts(ctx, signer, req.Value)
	if err != nil {
		return nil, err
	}

	_, tx, err := bind.DeployContract(opts, art.Bytecode, c.backend, input)
	if err != nil {
		c.resetNonce(opts.From)
		return nil, &domain.ChainError{Reason: fmt.Sprintf("deploy %s", art.Name), Err: err}
	}
	c.log.Info("deployment sent", "step", req.StepID, "contract", art.Name, "tx", tx.Hash().Hex())

	receipt, err := c.wait(ctx, tx)
	if err != nil {
		return nil, err
	}

	return &domain.DeployReceipt{
		Address:     receipt.ContractAddress.Hex(),
		TxID:        receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// CallFunction sends a state-changing call and waits for the receipt
func (c *Client) CallFunction(ctx context.Context, req domain.CallRequest, signer domain.SignerConfig) (*domain.CallReceipt, error) {
	if c.backend == nil {
		return nil, errors.New("not connected to a network")
	}
	if !common.IsHexAddress(req.Address) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, req.Address)
	}
	to := common.HexToAddress(req.Address)

	var contractABI *abi.ABI
	if req.Contract != "" {
		art, err := c.artifacts.Find(req.Contract)
		if err != nil {
			return nil, err
		}
		contractABI = &art.ABI
	}

	method, err := resolveMethod(contractABI, req.Function, len(req.Args))
	if err != nil {
		return nil, err
	}
	args, err := coerceArgs(method.Inputs, req.Args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method.Sig, err)
	}
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method.Sig, err)
	}
	calldata := append(append([]byte{}, method.ID...), packed...)

	opts, err := c.transactOpts(ctx, signer, req.Value)
	if err != nil {
		return nil, err
	}

	instance := bind.NewBoundContract(to, abi.ABI{}, c.backend, c.backend, c.backend)
	tx, err := instance.RawTransact(opts, calldata)
	if err != nil {
		c.resetNonce(opts.From)
		return nil, &domain.ChainError{Reason: method.Sig, Err: err}
	}
	c.log.Info("call sent", "step", req.StepID, "to", to.Hex(), "function", method.Sig, "tx", tx.Hash().Hex())

	receipt, err := c.wait(ctx, tx)
	if err != nil {
		return nil, err
	}

	return &domain.CallReceipt{
		TxID:        receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

func (c *Client) transactOpts(ctx context.Context, signer domain.SignerConfig, value any) (*bind.TransactOpts, error) {
	key, err := parsePrivateKey(signer.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid key in %s: %w", signer.Name, err)
	}

	wei, err := toValue(value)
	if err != nil {
		return nil, err
	}

	opts := bind.NewKeyedTransactor(key, c.chainID)
	opts.Context = ctx
	opts.Value = wei

	nonce, err := c.nextNonce(ctx, opts.From)
	if err != nil {
		return nil, err
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)
	return opts, nil
}

func (c *Client) nextNonce(ctx context.Context, from common.Address) (uint64, error) {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	nonce, ok := c.nonces[from]
	if !ok {
		pending, err := c.backend.PendingNonceAt(ctx, from)
		if err != nil {
			return 0, &domain.ChainError{Reason: "fetch nonce", Err: err}
		}
		nonce = pending
	}
	c.nonces[from] = nonce + 1
	return nonce, nil
}

// resetNonce forgets the cached nonce after a failed send
func (c *Client) resetNonce(from common.Address) {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	delete(c.nonces, from)
}

// wait blocks until the transaction is mined with the configured number of
// confirmations. Reverted transactions are reported as chain errors.
func (c *Client) wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, &domain.ChainError{TxID: tx.Hash().Hex(), Reason: "transaction reverted"}
	}

	if c.confirmations <= 1 {
		return receipt, nil
	}

	target := receipt.BlockNumber.Uint64() + c.confirmations - 1
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		head, err := c.backend.BlockNumber(ctx)
		if err == nil && head >= target {
			return receipt, nil
		}
		if err != nil {
			c.log.Debug("block number lookup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %d confirmations of %s: %w", c.confirmations, tx.Hash().Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func parsePrivateKey(hex string) (*ecdsa.PrivateKey, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "0x")
	return crypto.HexToECDSA(hex)
}

// Ensure Client implements ChainClient
var _ usecase.ChainClient = (*Client)(nil)
