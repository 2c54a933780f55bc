package domain

import "fmt"

// BattleSchemaVersion is bumped whenever the persisted battle shape changes
// in a way readers need to distinguish.
const BattleSchemaVersion = 1

// PlayerKey derives the stable unique key for a (player id, world) pair.
// A player id alone is not unique across worlds.
func PlayerKey(userID int64, world string) string {
	return fmt.Sprintf("%d-%s", userID, world)
}

type Player struct {
	UserID        int64
	World         string
	Name          string
	LastKnownRank string

	// epoch milliseconds of the last successful battle sync, nil if never synced
	LastUpdateTime *int64

	// highest battle id already ingested, nil if never synced
	LastBattleID *int64
}

func (p Player) Key() string {
	return PlayerKey(p.UserID, p.World)
}

// Side is one of the two symmetric slots of a canonical battle. P1 is always
// the side that picked first, regardless of which player's history the raw
// record came from.
type Side struct {
	ID        int64
	World     string
	Grade     string
	Win       bool
	FirstPick bool

	// units banned before any pick, this side's contribution
	Prebans []string

	// the unit banned by the opponent mid-draft and therefore unplayed
	Postban *string
	// 1-based index of the postban within this side's own pick order
	PostbanPosition *int

	// picked units in draft order, 1-5 entries
	Picks []string

	// Picks partitioned into the three reveal stages of the draft:
	// (1,2,2) for the first-pick side, (2,2,1) for the other.
	PickStages [3][]string
}

// Pick returns the unit at 1-based draft position n, or "" when fewer than n
// units were picked.
func (s Side) Pick(n int) string {
	if n < 1 || n > len(s.Picks) {
		return ""
	}
	return s.Picks[n-1]
}

// UnitDetail is one unit's in-battle record, flattened across both decks.
type UnitDetail struct {
	HeroCode     string
	HeroName     string
	ArtifactCode string
	ArtifactName string
	EquipSets    []string
	MVP          bool
	Position     int
	Role         string
	PickOrder    int
}

type Battle struct {
	BattleID   int64
	SeasonCode string

	// epoch milliseconds
	BattleDate int64
	TurnCount  int

	P1 Side
	P2 Side

	// de-duplicated union of both sides' prebans
	Prebans []string

	Units []UnitDetail

	// initial speed / turn-order gauge values, stored opaquely
	InitialSpeeds string

	SchemaVersion int
}
