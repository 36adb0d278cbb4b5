package config

import (
	"time"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string

	// Context settings
	Network *Network // nil if not specified

	// Execution settings
	Debug          bool
	NonInteractive bool
	JSON           bool // Output in JSON format
	Timeout        time.Duration

	// Command-specific settings (only populated for relevant commands)
	DryRun      bool
	Parallel    bool
	AssumeYes   bool
	StepTimeout time.Duration

	// Resolved configurations
	Networks      map[string]*Network
	Journal       JournalConfig
	Artifacts     ArtifactsConfig
	Confirmations uint64
}

// Network represents network configuration
type Network struct {
	Name        string `json:"name"`
	ChainID     uint64 `json:"chainId"`
	RPCURL      string `json:"rpcUrl"`
	Signer      string `json:"signer"` // secret holding the signing key
	ExplorerURL string `json:"explorerUrl,omitempty"`
}

// JournalBackend selects where journals are persisted
type JournalBackend string

const (
	JournalBackendFile     JournalBackend = "file"
	JournalBackendPostgres JournalBackend = "postgres"
)

// JournalConfig configures the journal store
type JournalConfig struct {
	Backend JournalBackend
	DSN     string
}

// ArtifactsConfig lists the directories searched for compiled contracts
type ArtifactsConfig struct {
	Dirs []string
}
