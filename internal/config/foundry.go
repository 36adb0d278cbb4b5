package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/trebuchet-org/treb-plan/internal/domain/config"
)

// FoundryFileName is the Foundry project file
const FoundryFileName = "foundry.toml"

// FoundryTOML is the part of foundry.toml treb-plan reads
type FoundryTOML struct {
	RpcEndpoints map[string]string         `toml:"rpc_endpoints"`
	Profile      map[string]map[string]any `toml:"profile"`
}

// loadFoundryFile loads foundry.toml, returning nil when the project has none
func loadFoundryFile(projectRoot string) (*FoundryTOML, error) {
	foundryPath := filepath.Join(projectRoot, FoundryFileName)
	if _, err := os.Stat(foundryPath); os.IsNotExist(err) {
		return nil, nil
	}

	var raw FoundryTOML
	if _, err := toml.DecodeFile(foundryPath, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FoundryFileName, err)
	}

	for name, url := range raw.RpcEndpoints {
		raw.RpcEndpoints[name] = os.ExpandEnv(url)
	}
	return &raw, nil
}

// mergeFoundry fills gaps in treb.toml from foundry.toml: endpoints of networks
// treb.toml does not configure, and the default profile's out directory when no
// artifact directories are set.
func mergeFoundry(trebFile *config.TrebFile, foundry *FoundryTOML) {
	if foundry == nil {
		return
	}

	for name, url := range foundry.RpcEndpoints {
		if _, ok := trebFile.Networks[name]; ok {
			continue
		}
		if trebFile.Networks == nil {
			trebFile.Networks = make(map[string]config.NetworkTOML)
		}
		trebFile.Networks[name] = config.NetworkTOML{URL: url}
	}

	if len(trebFile.Artifacts.Dirs) == 0 {
		if out, ok := foundry.Profile["default"]["out"].(string); ok && out != "" {
			trebFile.Artifacts.Dirs = []string{"artifacts", out}
		}
	}
}
