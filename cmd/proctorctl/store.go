package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/database"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/logger"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/repository"
)

// store bundles the repositories used by the data commands.
type store struct {
	pool       *pgxpool.Pool
	attempts   *repository.AttemptRepository
	extensions *repository.ExtensionRepository
	violations *repository.ViolationRepository
	log        zerolog.Logger
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &store{
		pool:       pool,
		attempts:   repository.NewAttemptRepository(pool),
		extensions: repository.NewExtensionRepository(pool),
		violations: repository.NewViolationRepository(pool),
		log:        log,
	}, nil
}

func (s *store) Close() { s.pool.Close() }
