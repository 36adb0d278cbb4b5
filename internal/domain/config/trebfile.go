package config

// TrebFile represents the raw treb.toml structure
type TrebFile struct {
	Networks  map[string]NetworkTOML `toml:"networks"`
	Journal   JournalTOML            `toml:"journal"`
	Artifacts ArtifactsTOML          `toml:"artifacts"`
	Execution ExecutionTOML          `toml:"execution"`
}

// NetworkTOML is a [networks.<name>] section
type NetworkTOML struct {
	URL         string `toml:"url"`
	ChainID     uint64 `toml:"chain_id"`
	Signer      string `toml:"signer,omitempty"` //nolint:gosec // names an env var, not a secret
	ExplorerURL string `toml:"explorer_url,omitempty"`
}

// JournalTOML is the [journal] section
type JournalTOML struct {
	Backend string `toml:"backend,omitempty"`
	DSN     string `toml:"dsn,omitempty"`
}

// ArtifactsTOML is the [artifacts] section
type ArtifactsTOML struct {
	Dirs []string `toml:"dirs,omitempty"`
}

// ExecutionTOML is the [execution] section
type ExecutionTOML struct {
	StepTimeout   string `toml:"step_timeout,omitempty"`
	Confirmations uint64 `toml:"confirmations,omitempty"`
}
