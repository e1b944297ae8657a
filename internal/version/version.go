package version

// Name is the application name shown in the TUI header and `agcred version`.
var Name = "agcred"

// Version is injected at build time via:
//
//	go build -ldflags "-X agcred/internal/version.Version=v0.2.0"
//
// Defaults to "dev" when not injected.
var Version = "dev"
