package config

// EmbeddedTMDBKey is an API key injected at build time via ldflags.
// It serves as the default token and can be overridden by environment
// variables, config file, or the settings API.
//
// Build with:
//   go build -ldflags "-X 'github.com/shelfstream/shelfstream/internal/config.EmbeddedTMDBKey=xxx'"
var EmbeddedTMDBKey string
