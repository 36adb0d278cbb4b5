package adapters

import (
	"log/slog"

	"github.com/google/wire"

	"github.com/trebuchet-org/treb-plan/internal/adapters/blockchain"
	"github.com/trebuchet-org/treb-plan/internal/adapters/chain"
	"github.com/trebuchet-org/treb-plan/internal/adapters/interactive"
	"github.com/trebuchet-org/treb-plan/internal/adapters/journal"
	"github.com/trebuchet-org/treb-plan/internal/adapters/planfile"
	"github.com/trebuchet-org/treb-plan/internal/config"
	domainconfig "github.com/trebuchet-org/treb-plan/internal/domain/config"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// ProvideJournalStore opens the configured journal backend. The cleanup closes it.
func ProvideJournalStore(cfg *domainconfig.RuntimeConfig, log *slog.Logger) (*journal.LazyStore, func(), error) {
	store, err := journal.NewStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close journal store", "error", err)
		}
	}
	return store, cleanup, nil
}

// ProvideSecretStore snapshots the environment after .env files were loaded
func ProvideSecretStore() *config.EnvSecretStore {
	return config.NewEnvSecretStore()
}

// PlanSet provides plan definition loading
var PlanSet = wire.NewSet(
	planfile.NewLoader,
	wire.Bind(new(usecase.PlanLoader), new(*planfile.Loader)),
)

// JournalSet provides the execution journal store
var JournalSet = wire.NewSet(
	ProvideJournalStore,
	wire.Bind(new(usecase.JournalStore), new(*journal.LazyStore)),
)

// ChainSet provides go-ethereum based implementations
var ChainSet = wire.NewSet(
	chain.NewArtifactStore,
	chain.NewClient,
	wire.Bind(new(usecase.ChainClient), new(*chain.Client)),
	wire.Bind(new(usecase.StepChecker), new(*chain.Client)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewSelectorAdapter,
	wire.Bind(new(usecase.InteractiveSelector), new(*interactive.SelectorAdapter)),
	wire.Bind(new(usecase.Confirmer), new(*interactive.SelectorAdapter)),
)

// ConfigSet provides configuration-based implementations
var ConfigSet = wire.NewSet(
	config.NewNetworkResolver,
	wire.Bind(new(usecase.NetworkResolver), new(*config.NetworkResolver)),
	ProvideSecretStore,
	wire.Bind(new(usecase.SecretStore), new(*config.EnvSecretStore)),
)

// BlockchainSet provides live chain lookups
var BlockchainSet = wire.NewSet(
	blockchain.NewRPCProbe,
	wire.Bind(new(usecase.ChainProbe), new(*blockchain.RPCProbe)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	PlanSet,
	JournalSet,
	ChainSet,
	InteractiveSet,
	ConfigSet,
	BlockchainSet,
)
