//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"

	"github.com/trebuchet-org/treb-plan/internal/adapters"
	"github.com/trebuchet-org/treb-plan/internal/config"
	"github.com/trebuchet-org/treb-plan/internal/logging"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// InitApp creates a fully wired App instance. The cleanup releases the journal store.
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, func(), error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewExecutePlan,
		usecase.NewValidatePlan,
		usecase.NewShowJournal,
		usecase.NewResetJournal,
		usecase.NewListNetworks,

		// App
		NewApp,
	)
	return nil, nil, nil
}
