package config

// Build information, set at link time:
//
//	go build -ldflags "-X github.com/trebuchet-org/treb-plan/internal/config.Version=v0.1.0" ./cli
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
