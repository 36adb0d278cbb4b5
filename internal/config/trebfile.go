package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
)

// TrebFileName is the project configuration file
const TrebFileName = "treb.toml"

// loadDotEnv loads .env and .env.local from the project root.
// Variables already present in the environment win.
func loadDotEnv(projectRoot string) {
	envFiles := []string{
		filepath.Join(projectRoot, ".env"),
		filepath.Join(projectRoot, ".env.local"),
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				// Log warning but don't fail
				fmt.Fprintf(os.Stderr, "Warning: Failed to load %s: %v\n", envFile, err)
			}
		}
	}
}

// loadTrebFile loads and parses treb.toml if it exists.
// Returns an empty file when treb.toml does not exist.
func loadTrebFile(projectRoot string) (*config.TrebFile, error) {
	trebPath := filepath.Join(projectRoot, TrebFileName)

	cfg := &config.TrebFile{}
	if _, err := os.Stat(trebPath); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(trebPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", TrebFileName, err)
	}

	expandTrebFile(cfg)
	return cfg, nil
}

// expandTrebFile expands ${VAR} references in every string value
func expandTrebFile(cfg *config.TrebFile) {
	for name, network := range cfg.Networks {
		network.URL = os.ExpandEnv(network.URL)
		network.Signer = os.ExpandEnv(network.Signer)
		network.ExplorerURL = os.ExpandEnv(network.ExplorerURL)
		cfg.Networks[name] = network
	}

	cfg.Journal.Backend = os.ExpandEnv(cfg.Journal.Backend)
	cfg.Journal.DSN = os.ExpandEnv(cfg.Journal.DSN)

	for i, dir := range cfg.Artifacts.Dirs {
		cfg.Artifacts.Dirs[i] = os.ExpandEnv(dir)
	}

	cfg.Execution.StepTimeout = os.ExpandEnv(cfg.Execution.StepTimeout)
}
