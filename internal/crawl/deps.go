package crawl

import (
	"context"

	"rta-crawler/internal/api"
	"rta-crawler/internal/domain"
)

// GameAPI is the slice of the upstream client the crawl pools consume.
type GameAPI interface {
	GetRecommendList(ctx context.Context) (*api.RecommendListResponse, error)
	GetBattleList(ctx context.Context, userID int64, world, season string) (*api.BattleListResponse, error)
}

// PlayerStore is the player side of the persistence facade.
type PlayerStore interface {
	UpsertBatch(ctx context.Context, players []domain.Player, season string) error
	UpdateWatermark(ctx context.Context, userID int64, world, season string, updateTime, lastBattleID int64, lastRank string) error
	PageByOldestSync(ctx context.Context, count int, season string) ([]domain.Player, error)
	ScanAll(ctx context.Context, season string) ([]domain.Player, error)
}

// BattleStore is the battle side of the persistence facade.
type BattleStore interface {
	UpsertBatch(ctx context.Context, battles []domain.Battle, season string) error
}
