package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-enroll/internal/config"
)

// Opener connects a KV backend using the database configuration.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (KV, error)

var (
	backends   = make(map[string]Opener)
	backendsMu sync.RWMutex
)

// RegisterBackend registers a KV backend constructor under name.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(name string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = open
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects the backend named in cfg.Backend.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (KV, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	backendsMu.RLock()
	open, ok := backends[cfg.Backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown credential backend %q (available: %v)", cfg.Backend, Backends())
	}
	kv, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.Backend, err)
	}
	return kv, nil
}
