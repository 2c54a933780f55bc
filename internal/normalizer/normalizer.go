package normalizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"rta-crawler/internal/api"
	"rta-crawler/internal/domain"
	"rta-crawler/internal/registry"
)

const battleDayLayout = "2006-01-02 15:04:05"

// Stage sizes of the alternating-reveal draft: the first-pick side reveals
// 1/2/2, the second-pick side 2/2/1.
var (
	firstPickStages  = [3]int{1, 2, 2}
	secondPickStages = [3]int{2, 2, 1}
)

// Normalizer converts raw, player-relative battle records into canonical,
// side-independent ones.
type Normalizer struct {
	units     *registry.UnitRegistry
	artefacts *registry.ArtefactRegistry
}

func New(units *registry.UnitRegistry, artefacts *registry.ArtefactRegistry) *Normalizer {
	return &Normalizer{units: units, artefacts: artefacts}
}

// rawSide is one side's data still in requester/opponent terms, before the
// first-pick swap decides which canonical slot it lands in.
type rawSide struct {
	id    int64
	world string
	grade string
	win   bool
	deck  *api.RawDeck
	picks []teamUnit
}

// Convert builds the canonical battle for one raw record. Canonical p1 is
// always the side that picked first; when the requesting player was not first
// pick, requester and opponent swap slots.
func (n *Normalizer) Convert(raw *api.RawBattle) (*domain.Battle, error) {
	battleID, err := strconv.ParseInt(raw.BattleSeq, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid battle_seq %q: %w", raw.BattleSeq, err)
	}

	battleDate, err := parseBattleDay(raw.BattleDay)
	if err != nil {
		return nil, err
	}

	myPicks, err := parseTeamInfo(raw.TeamBattleInfo)
	if err != nil {
		return nil, fmt.Errorf("battle %d: requester draft blob: %w", battleID, err)
	}
	enemyPicks, err := parseTeamInfo(raw.TeamBattleInfoEnemy)
	if err != nil {
		return nil, fmt.Errorf("battle %d: opponent draft blob: %w", battleID, err)
	}

	requester := rawSide{
		id:    raw.NicknameNo,
		world: raw.WorldCode,
		grade: raw.GradeCode,
		win:   raw.IsWin == 1,
		deck:  &raw.MyDeck,
		picks: myPicks,
	}
	opponent := rawSide{
		id:    raw.MatchPlayerNicknameNo,
		world: raw.EnemyWorldCode,
		grade: raw.EnemyGradeCode,
		win:   raw.IsWin == 2,
		deck:  &raw.EnemyDeck,
		picks: enemyPicks,
	}

	// The first-pick flag lives in the requester's hero list; its absence
	// means the opponent picked first and the canonical slots swap.
	requesterFirstPick := hasFirstPick(&raw.MyDeck)

	first, second := requester, opponent
	if !requesterFirstPick {
		first, second = opponent, requester
	}

	p1, err := buildSide(first, true)
	if err != nil {
		return nil, fmt.Errorf("battle %d: %w", battleID, err)
	}
	p2, err := buildSide(second, false)
	if err != nil {
		return nil, fmt.Errorf("battle %d: %w", battleID, err)
	}

	speeds, err := wrapFragment(raw.BattleInfoExtra)
	if err != nil {
		return nil, fmt.Errorf("battle %d: speed gauge blob: %w", battleID, err)
	}

	return &domain.Battle{
		BattleID:      battleID,
		SeasonCode:    raw.SeasonCode,
		BattleDate:    battleDate,
		TurnCount:     raw.TurnCount,
		P1:            p1,
		P2:            p2,
		Prebans:       mergePrebans(p1.Prebans, p2.Prebans),
		Units:         n.unitDetails(raw, myPicks, enemyPicks),
		InitialSpeeds: speeds,
		SchemaVersion: domain.BattleSchemaVersion,
	}, nil
}

func buildSide(side rawSide, firstPick bool) (domain.Side, error) {
	picks := make([]string, len(side.picks))
	for i, u := range side.picks {
		picks[i] = u.HeroCode
	}

	out := domain.Side{
		ID:         side.id,
		World:      side.world,
		Grade:      side.grade,
		Win:        side.win,
		FirstPick:  firstPick,
		Prebans:    side.deck.PrebanList,
		Picks:      picks,
		PickStages: partitionStages(picks, firstPick),
	}

	// The postban is the hero flagged banned in this side's list: picked by
	// this side, banned by the opponent, never played. Absence is valid.
	if banned := findPostban(side.deck); banned != "" {
		pos := 0
		for i, code := range picks {
			if code == banned {
				pos = i + 1
				break
			}
		}
		if pos == 0 {
			return domain.Side{}, fmt.Errorf("postban %s not present in pick order", banned)
		}
		out.Postban = &banned
		out.PostbanPosition = &pos
	}

	return out, nil
}

func findPostban(deck *api.RawDeck) string {
	for _, hero := range deck.HeroList {
		if hero.Ban == 1 {
			return hero.HeroCode
		}
	}
	return ""
}

func hasFirstPick(deck *api.RawDeck) bool {
	for _, hero := range deck.HeroList {
		if hero.FirstPick == 1 {
			return true
		}
	}
	return false
}

// partitionStages splits a pick order into the three reveal stages. With
// fewer than five picks the later stages truncate first.
func partitionStages(picks []string, firstPick bool) [3][]string {
	sizes := secondPickStages
	if firstPick {
		sizes = firstPickStages
	}

	var stages [3][]string
	offset := 0
	for i, size := range sizes {
		if offset >= len(picks) {
			stages[i] = []string{}
			continue
		}
		end := offset + size
		if end > len(picks) {
			end = len(picks)
		}
		stages[i] = picks[offset:end]
		offset = end
	}
	return stages
}

func mergePrebans(a, b []string) []string {
	seen := map[string]struct{}{}
	merged := make([]string, 0, len(a)+len(b))
	for _, code := range append(append([]string{}, a...), b...) {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		merged = append(merged, code)
	}
	return merged
}

func (n *Normalizer) unitDetails(raw *api.RawBattle, myPicks, enemyPicks []teamUnit) []domain.UnitDetail {
	details := make([]domain.UnitDetail, 0, len(myPicks)+len(enemyPicks))
	details = append(details, n.sideDetails(myPicks, &raw.MyDeck)...)
	details = append(details, n.sideDetails(enemyPicks, &raw.EnemyDeck)...)
	return details
}

func (n *Normalizer) sideDetails(picks []teamUnit, deck *api.RawDeck) []domain.UnitDetail {
	mvp := map[string]bool{}
	for _, hero := range deck.HeroList {
		if hero.MVP == 1 {
			mvp[hero.HeroCode] = true
		}
	}

	details := make([]domain.UnitDetail, len(picks))
	for i, u := range picks {
		details[i] = domain.UnitDetail{
			HeroCode:     u.HeroCode,
			HeroName:     n.units.NameFromID(u.HeroCode),
			ArtifactCode: u.ArtifactCode,
			ArtifactName: n.artefacts.NameFromID(u.ArtifactCode),
			EquipSets:    u.EquipSets,
			MVP:          mvp[u.HeroCode],
			Position:     u.Position,
			Role:         u.Role,
			PickOrder:    u.PickOrder,
		}
	}
	return details
}

type teamInfo struct {
	MyTeam []teamUnit `json:"my_team"`
}

type teamUnit struct {
	HeroCode     string   `json:"hero_code"`
	PickOrder    int      `json:"pick_order"`
	Position     int      `json:"location_no"`
	Role         string   `json:"job_cd"`
	ArtifactCode string   `json:"artifact"`
	EquipSets    []string `json:"set_list"`
}

// parseTeamInfo parses a draft-order blob. The upstream ships it as a JSON
// fragment missing its outer braces; the wrapping happens here so the quirk
// stays behind this one function.
func parseTeamInfo(fragment string) ([]teamUnit, error) {
	if fragment == "" {
		return nil, fmt.Errorf("empty draft blob")
	}

	var info teamInfo
	if err := json.Unmarshal([]byte("{"+fragment+"}"), &info); err != nil {
		return nil, fmt.Errorf("malformed draft blob: %w", err)
	}

	sort.SliceStable(info.MyTeam, func(i, j int) bool {
		return info.MyTeam[i].PickOrder < info.MyTeam[j].PickOrder
	})
	return info.MyTeam, nil
}

// wrapFragment re-assembles the speed gauge fragment into a valid JSON object
// but keeps it opaque otherwise.
func wrapFragment(fragment string) (string, error) {
	if fragment == "" {
		return "", nil
	}
	wrapped := "{" + fragment + "}"
	if !json.Valid([]byte(wrapped)) {
		return "", fmt.Errorf("malformed fragment")
	}
	return wrapped, nil
}

// parseBattleDay converts the upstream timestamp string to epoch
// milliseconds. The value carries no timezone and is treated as UTC.
func parseBattleDay(value string) (int64, error) {
	// time.Parse accepts a fractional second after the seconds field even
	// when the layout has none, which covers the trailing ".0".
	t, err := time.Parse(battleDayLayout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid battle_day %q: %w", value, err)
	}
	return t.UnixMilli(), nil
}
