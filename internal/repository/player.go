package repository

import (
	"context"
	"database/sql"
	"fmt"

	"rta-crawler/internal/constants"
	"rta-crawler/internal/domain"

	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const upsertPlayerSQL = `
INSERT INTO players (season, player_key, user_id, world, name, last_known_rank)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (season, player_key) DO UPDATE SET
    name = excluded.name,
    last_known_rank = excluded.last_known_rank`

// UpsertBatch inserts or refreshes discovered players. Sync watermarks of
// already-known players are left untouched; only UpdateWatermark moves them.
func (r *PlayerRepository) UpsertBatch(ctx context.Context, players []domain.Player, season string) error {
	if len(players) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPlayerSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare player upsert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < len(players); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(players) {
			end = len(players)
		}

		for _, player := range players[i:end] {
			_, err := stmt.ExecContext(ctx,
				season, player.Key(), player.UserID, player.World,
				player.Name, player.LastKnownRank,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert player %s: %w", player.Key(), err)
			}
		}
	}

	r.logger.Debug().Int("count", len(players)).Str("season", season).Msg("players upserted")
	return tx.Commit()
}

// UpdateWatermark records a completed battle sync for one player.
func (r *PlayerRepository) UpdateWatermark(ctx context.Context, userID int64, world, season string, updateTime, lastBattleID int64, lastRank string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE players
		SET last_update_time = ?, last_battle_id = ?, last_known_rank = ?
		WHERE season = ? AND player_key = ?`,
		updateTime, lastBattleID, lastRank, season, domain.PlayerKey(userID, world),
	)
	if err != nil {
		return fmt.Errorf("failed to update watermark: %w", err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		r.logger.Warn().
			Int64("user_id", userID).
			Str("world", world).
			Str("season", season).
			Msg("watermark update matched no player")
	}
	return nil
}

// PageByOldestSync returns up to count players ordered stalest-first. Players
// never synced (NULL update time) sort before everything else.
func (r *PlayerRepository) PageByOldestSync(ctx context.Context, count int, season string) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, world, name, last_known_rank, last_update_time, last_battle_id
		FROM players
		WHERE season = ?
		ORDER BY last_update_time ASC
		LIMIT ?`,
		season, count,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlayers(rows)
}

// ScanAll returns every persisted player of the season, used to seed the
// discovery set before a sync run.
func (r *PlayerRepository) ScanAll(ctx context.Context, season string) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, world, name, last_known_rank, last_update_time, last_battle_id
		FROM players
		WHERE season = ?`,
		season,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlayers(rows)
}

func scanPlayers(rows *sql.Rows) ([]domain.Player, error) {
	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		var updateTime, battleID sql.NullInt64
		if err := rows.Scan(&p.UserID, &p.World, &p.Name, &p.LastKnownRank, &updateTime, &battleID); err != nil {
			return nil, err
		}
		if updateTime.Valid {
			p.LastUpdateTime = &updateTime.Int64
		}
		if battleID.Valid {
			p.LastBattleID = &battleID.Int64
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
