package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
)

const (
	// DefaultSigner is the secret holding the signing key when a network names none
	DefaultSigner = "PRIVATE_KEY"
	// DefaultStepTimeout bounds a single deploy or call
	DefaultStepTimeout = 5 * time.Minute
)

// DefaultArtifactDirs are searched for compiled contracts: Hardhat first, then Foundry
var DefaultArtifactDirs = []string{"artifacts", "out"}

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	// Get project root from viper
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		var err error
		projectRoot, err = FindProjectRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}

	loadDotEnv(projectRoot)

	trebFile, err := loadTrebFile(projectRoot)
	if err != nil {
		return nil, err
	}

	foundry, err := loadFoundryFile(projectRoot)
	if err != nil {
		return nil, err
	}
	mergeFoundry(trebFile, foundry)

	cfg := &config.RuntimeConfig{
		ProjectRoot:    projectRoot,
		DataDir:        filepath.Join(projectRoot, ".treb"),
		Debug:          v.GetBool("debug"),
		NonInteractive: v.GetBool("non_interactive"),
		JSON:           v.GetBool("json"),
		Timeout:        v.GetDuration("timeout"),
		DryRun:         v.GetBool("dry_run"),
		Parallel:       v.GetBool("parallel"),
		AssumeYes:      v.GetBool("yes"),
		Networks:       buildNetworks(trebFile),
		Confirmations:  trebFile.Execution.Confirmations,
	}

	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}

	cfg.StepTimeout, err = resolveStepTimeout(v, trebFile)
	if err != nil {
		return nil, err
	}

	cfg.Journal, err = buildJournalConfig(v, trebFile)
	if err != nil {
		return nil, err
	}

	dirs := trebFile.Artifacts.Dirs
	if len(dirs) == 0 {
		dirs = DefaultArtifactDirs
	}
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(projectRoot, dir)
		}
		cfg.Artifacts.Dirs = append(cfg.Artifacts.Dirs, dir)
	}

	// Resolve network if specified
	if networkName := v.GetString("network"); networkName != "" {
		network, err := NewNetworkResolver(cfg).Resolve(networkName)
		if err != nil {
			return nil, err
		}
		cfg.Network = network
	}

	return cfg, nil
}

func buildNetworks(trebFile *config.TrebFile) map[string]*config.Network {
	networks := make(map[string]*config.Network, len(trebFile.Networks))
	for name, raw := range trebFile.Networks {
		signer := raw.Signer
		if signer == "" {
			signer = DefaultSigner
		}
		networks[name] = &config.Network{
			Name:        name,
			ChainID:     raw.ChainID,
			RPCURL:      raw.URL,
			Signer:      signer,
			ExplorerURL: raw.ExplorerURL,
		}
	}
	return networks
}

// resolveStepTimeout picks the flag or environment value, then treb.toml, then the default
func resolveStepTimeout(v *viper.Viper, trebFile *config.TrebFile) (time.Duration, error) {
	if d := v.GetDuration("step_timeout"); d > 0 {
		return d, nil
	}
	if raw := trebFile.Execution.StepTimeout; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid execution.step_timeout %q: %w", raw, err)
		}
		if d <= 0 {
			return 0, fmt.Errorf("invalid execution.step_timeout %q: must be positive", raw)
		}
		return d, nil
	}
	return DefaultStepTimeout, nil
}

func buildJournalConfig(v *viper.Viper, trebFile *config.TrebFile) (config.JournalConfig, error) {
	backend := v.GetString("journal_backend")
	if backend == "" {
		backend = trebFile.Journal.Backend
	}
	if backend == "" {
		backend = string(config.JournalBackendFile)
	}

	jc := config.JournalConfig{
		Backend: config.JournalBackend(strings.ToLower(backend)),
		DSN:     trebFile.Journal.DSN,
	}
	if dsn := v.GetString("journal_dsn"); dsn != "" {
		jc.DSN = dsn
	}

	switch jc.Backend {
	case config.JournalBackendFile:
	case config.JournalBackendPostgres:
		if jc.DSN == "" {
			return jc, fmt.Errorf("journal backend %q requires journal.dsn", jc.Backend)
		}
	default:
		return jc, fmt.Errorf("unknown journal backend %q (expected file or postgres)", backend)
	}
	return jc, nil
}

// FindProjectRoot walks up from current directory to find treb.toml or foundry.toml.
// Without either, the current directory is the project root.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		for _, name := range []string{TrebFileName, FoundryFileName} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	v := viper.New()

	// Set up config file
	v.SetConfigName("config.local")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(projectRoot, ".treb"))

	// Set up environment variables
	v.SetEnvPrefix("TREB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Set defaults
	v.SetDefault("timeout", "0s")
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("project_root", projectRoot)

	// Try to read config file (ignore error if not found)
	_ = v.ReadInConfig()

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		if err != nil {
			panic(err)
		}
	})

	return v
}
