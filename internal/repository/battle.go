package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"rta-crawler/internal/constants"
	"rta-crawler/internal/domain"

	"github.com/rs/zerolog"
)

type BattleRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewBattleRepository(sqlDB *sql.DB, logger zerolog.Logger) *BattleRepository {
	return &BattleRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const upsertBattleSQL = `
INSERT INTO battles (
    season, battle_id, battle_date, turn_count, schema_version,
    p1_id, p1_world, p1_grade, p1_win, p1_first_pick,
    p1_prebans, p1_postban, p1_postban_position,
    p1_picks, p1_pick1, p1_pick2, p1_pick3, p1_pick4, p1_pick5, p1_pick_stages,
    p2_id, p2_world, p2_grade, p2_win, p2_first_pick,
    p2_prebans, p2_postban, p2_postban_position,
    p2_picks, p2_pick1, p2_pick2, p2_pick3, p2_pick4, p2_pick5, p2_pick_stages,
    prebans, units, initial_speeds
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (season, battle_id) DO UPDATE SET
    battle_date = excluded.battle_date,
    turn_count = excluded.turn_count,
    schema_version = excluded.schema_version,
    p1_id = excluded.p1_id, p1_world = excluded.p1_world, p1_grade = excluded.p1_grade,
    p1_win = excluded.p1_win, p1_first_pick = excluded.p1_first_pick,
    p1_prebans = excluded.p1_prebans, p1_postban = excluded.p1_postban,
    p1_postban_position = excluded.p1_postban_position,
    p1_picks = excluded.p1_picks,
    p1_pick1 = excluded.p1_pick1, p1_pick2 = excluded.p1_pick2, p1_pick3 = excluded.p1_pick3,
    p1_pick4 = excluded.p1_pick4, p1_pick5 = excluded.p1_pick5,
    p1_pick_stages = excluded.p1_pick_stages,
    p2_id = excluded.p2_id, p2_world = excluded.p2_world, p2_grade = excluded.p2_grade,
    p2_win = excluded.p2_win, p2_first_pick = excluded.p2_first_pick,
    p2_prebans = excluded.p2_prebans, p2_postban = excluded.p2_postban,
    p2_postban_position = excluded.p2_postban_position,
    p2_picks = excluded.p2_picks,
    p2_pick1 = excluded.p2_pick1, p2_pick2 = excluded.p2_pick2, p2_pick3 = excluded.p2_pick3,
    p2_pick4 = excluded.p2_pick4, p2_pick5 = excluded.p2_pick5,
    p2_pick_stages = excluded.p2_pick_stages,
    prebans = excluded.prebans,
    units = excluded.units,
    initial_speeds = excluded.initial_speeds`

// UpsertBatch persists canonical battles keyed by (season, battle id).
// Re-inserting an id overwrites, so re-ingestion is idempotent with the
// latest write winning.
func (r *BattleRepository) UpsertBatch(ctx context.Context, battles []domain.Battle, season string) error {
	if len(battles) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertBattleSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare battle upsert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < len(battles); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(battles) {
			end = len(battles)
		}

		for _, battle := range battles[i:end] {
			args, err := battleArgs(&battle, season)
			if err != nil {
				return fmt.Errorf("failed to encode battle %d: %w", battle.BattleID, err)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to upsert battle %d: %w", battle.BattleID, err)
			}
		}
	}

	r.logger.Debug().Int("count", len(battles)).Str("season", season).Msg("battles upserted")
	return tx.Commit()
}

// CountBySeason reports the persisted battle count of a season.
func (r *BattleRepository) CountBySeason(ctx context.Context, season string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM battles WHERE season = ?`, season,
	).Scan(&count)
	return count, err
}

func battleArgs(b *domain.Battle, season string) ([]any, error) {
	args := []any{season, b.BattleID, b.BattleDate, b.TurnCount, b.SchemaVersion}

	for _, side := range []*domain.Side{&b.P1, &b.P2} {
		sideArgs, err := sideArgs(side)
		if err != nil {
			return nil, err
		}
		args = append(args, sideArgs...)
	}

	prebans, err := json.Marshal(b.Prebans)
	if err != nil {
		return nil, err
	}
	units, err := json.Marshal(b.Units)
	if err != nil {
		return nil, err
	}
	args = append(args, string(prebans), string(units), b.InitialSpeeds)
	return args, nil
}

func sideArgs(s *domain.Side) ([]any, error) {
	prebans, err := json.Marshal(s.Prebans)
	if err != nil {
		return nil, err
	}
	picks, err := json.Marshal(s.Picks)
	if err != nil {
		return nil, err
	}
	stages, err := json.Marshal(s.PickStages)
	if err != nil {
		return nil, err
	}

	args := []any{
		s.ID, s.World, s.Grade, s.Win, s.FirstPick,
		string(prebans), s.Postban, s.PostbanPosition,
		string(picks),
	}
	for n := 1; n <= 5; n++ {
		if pick := s.Pick(n); pick != "" {
			args = append(args, pick)
		} else {
			args = append(args, nil)
		}
	}
	args = append(args, string(stages))
	return args, nil
}
