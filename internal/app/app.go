package app

import (
	"log/slog"

	"github.com/trebuchet-org/treb-plan/internal/domain/config"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Log    *slog.Logger

	// Shared dependencies
	Selector  usecase.InteractiveSelector
	Confirmer usecase.Confirmer
	Networks  usecase.NetworkResolver

	// Use cases
	ExecutePlan  *usecase.ExecutePlan
	ValidatePlan *usecase.ValidatePlan
	ShowJournal  *usecase.ShowJournal
	ResetJournal *usecase.ResetJournal
	ListNetworks *usecase.ListNetworks
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	log *slog.Logger,
	selector usecase.InteractiveSelector,
	confirmer usecase.Confirmer,
	networks usecase.NetworkResolver,
	executePlan *usecase.ExecutePlan,
	validatePlan *usecase.ValidatePlan,
	showJournal *usecase.ShowJournal,
	resetJournal *usecase.ResetJournal,
	listNetworks *usecase.ListNetworks,
) (*App, error) {
	return &App{
		Config:       cfg,
		Log:          log,
		Selector:     selector,
		Confirmer:    confirmer,
		Networks:     networks,
		ExecutePlan:  executePlan,
		ValidatePlan: validatePlan,
		ShowJournal:  showJournal,
		ResetJournal: resetJournal,
		ListNetworks: listNetworks,
	}, nil
}
