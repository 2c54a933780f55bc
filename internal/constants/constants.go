package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultWorkers      = 3
	DefaultSeedPages    = 5
	DefaultMaxPlayers   = 500
	DefaultSyncPageSize = 50
)

// Rank grade codes as reported by the battle list endpoint. The recommend
// list endpoint does not carry a grade, entries there are assumed legend.
const (
	RankBronze     = "bronze"
	RankSilver     = "silver"
	RankGold       = "gold"
	RankMaster     = "master"
	RankChallenger = "challenger"
	RankChampion   = "champion"
	RankEmperor    = "emperor"
	RankLegend     = "legend"
)

var allowedPlayerRanks = map[string]struct{}{
	RankChallenger: {},
	RankChampion:   {},
	RankEmperor:    {},
	RankLegend:     {},
}

// RankAllowed reports whether a grade code is part of the crawled bracket.
func RankAllowed(rank string) bool {
	_, ok := allowedPlayerRanks[rank]
	return ok
}
