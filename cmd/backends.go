package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-enroll/internal/config"
	"github.com/kozaktomas/face-enroll/internal/credential"
	"github.com/kozaktomas/face-enroll/internal/database"
	"github.com/rs/zerolog/log"

	// Credential backends register themselves with the database package.
	_ "github.com/kozaktomas/face-enroll/internal/database/bolt"
	_ "github.com/kozaktomas/face-enroll/internal/database/mariadb"
	_ "github.com/kozaktomas/face-enroll/internal/database/postgres"
	_ "github.com/kozaktomas/face-enroll/internal/database/redis"
)

// openCredentialStore connects the configured backend. The caller closes the
// returned KV.
func openCredentialStore(ctx context.Context, cfg *config.Config) (*credential.Store, database.KV, error) {
	log.Debug().Str("backend", cfg.Database.Backend).Strs("available", database.Backends()).Msg("opening credential backend")

	kv, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s credential backend: %w", cfg.Database.Backend, err)
	}

	var opts []credential.Option
	if cfg.Database.KeyPrefix != "" {
		opts = append(opts, credential.WithKeyPrefix(cfg.Database.KeyPrefix))
	}
	return credential.NewStore(kv, opts...), kv, nil
}
