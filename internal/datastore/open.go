package datastore

import (
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Config struct {
	Mode          string
	RemoteURL     string
	RemoteKey     string
	RemoteTimeout time.Duration
	RemoteRetries int
	Tables        TableNames
	DB            *bun.DB
}

func (cfg Config) hasRemoteCredentials() bool {
	return cfg.RemoteURL != "" && cfg.RemoteKey != ""
}

// ResolveMode applies the selection policy: the configured mode wins, an
// empty mode means remote when credentials exist, and a mode that cannot be
// served degrades to memory with the fallback flag raised.
func ResolveMode(cfg Config) (configured, mode string, fallback bool) {
	configured = strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch configured {
	case "":
		if cfg.hasRemoteCredentials() {
			return configured, ModeRemote, false
		}
		return configured, ModeMemory, false
	case ModeMemory:
		return configured, ModeMemory, false
	case ModeRemote:
		if cfg.hasRemoteCredentials() {
			return configured, ModeRemote, false
		}
		return configured, ModeMemory, true
	case ModePostgres:
		if cfg.DB != nil {
			return configured, ModePostgres, false
		}
		return configured, ModeMemory, true
	default:
		return configured, ModeMemory, true
	}
}

func Open(cfg Config) (Gateway, *Status) {
	configured, mode, fallback := ResolveMode(cfg)
	status := NewStatus(configured, mode, fallback)
	if fallback {
		slog.Warn("storage mode unavailable, falling back to memory", "configured", configured)
	}

	switch mode {
	case ModeRemote:
		primary := NewREST(RESTConfig{
			BaseURL: cfg.RemoteURL,
			APIKey:  cfg.RemoteKey,
			Timeout: cfg.RemoteTimeout,
			Retries: cfg.RemoteRetries,
			Tables:  cfg.Tables,
		})
		return NewFallback(primary, NewMemory(), cfg.RemoteTimeout, status), status
	case ModePostgres:
		return NewFallback(NewPostgres(cfg.DB, cfg.Tables), NewMemory(), cfg.RemoteTimeout, status), status
	default:
		return NewMemory(), status
	}
}
