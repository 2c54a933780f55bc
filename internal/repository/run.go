package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// RunRepository records one row per CLI invocation for operational
// visibility: what ran, for which season, and how much it ingested.
type RunRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRunRepository(sqlDB *sql.DB, logger zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *RunRepository) Start(ctx context.Context, mode, season string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate nanoid: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, mode, season, started_at)
		VALUES (?, ?, ?, ?)`,
		id, mode, season, time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record crawl run: %w", err)
	}

	r.logger.Debug().Str("crawl_run", id).Str("mode", mode).Msg("crawl run started")
	return id, nil
}

func (r *RunRepository) Finish(ctx context.Context, id string, playersCount, battlesCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE crawl_runs
		SET players_count = ?, battles_count = ?, finished_at = ?
		WHERE id = ?`,
		playersCount, battlesCount, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish crawl run: %w", err)
	}
	return nil
}
