package normalizer

import (
	"fmt"
	"strings"
	"testing"

	"rta-crawler/internal/api"
	"rta-crawler/internal/registry"

	"github.com/stretchr/testify/require"
)

func testNormalizer() *Normalizer {
	units := registry.NewUnitRegistry(
		registry.Unit{ID: "c1127", Name: "Abigail", Grade: "5", Role: "warrior", Element: "fire"},
		registry.Unit{ID: "c2019", Name: "Carrot", Grade: "3", Role: "mage", Element: "fire"},
		registry.Unit{ID: "c1003", Name: "Rose", Grade: "4", Role: "knight", Element: "ice"},
		registry.Unit{ID: "c1008", Name: "Cidd", Grade: "4", Role: "assassin", Element: "earth"},
		registry.Unit{ID: "c1023", Name: "Sez", Grade: "5", Role: "assassin", Element: "ice"},
		registry.Unit{ID: "c2005", Name: "Mistychain", Grade: "3", Role: "mage", Element: "ice"},
	)
	artefacts := registry.NewArtefactRegistry(
		registry.Artefact{ID: "ef507", Name: "Elbris Ritual Sword"},
	)
	return New(units, artefacts)
}

// draftFragment builds a teamBettleInfo blob: a JSON fragment missing its
// outer braces, entries deliberately out of pick order.
func draftFragment(codes ...string) string {
	entries := make([]string, len(codes))
	for i, code := range codes {
		entries[len(codes)-1-i] = fmt.Sprintf(
			`{"hero_code":%q,"pick_order":%d,"location_no":%d,"job_cd":"warrior","artifact":"ef507","set_list":["set_speed"]}`,
			code, i+1, i+1,
		)
	}
	return fmt.Sprintf(`"my_team":[%s]`, strings.Join(entries, ","))
}

func deck(prebans []string, picks []string, postban string, firstPick bool, mvp string) api.RawDeck {
	heroes := make([]api.RawDeckHero, len(picks))
	for i, code := range picks {
		h := api.RawDeckHero{HeroCode: code}
		if code == postban {
			h.Ban = 1
		}
		if firstPick && i == 0 {
			h.FirstPick = 1
		}
		if code == mvp {
			h.MVP = 1
		}
		heroes[i] = h
	}
	return api.RawDeck{PrebanList: prebans, HeroList: heroes}
}

var (
	myPicks    = []string{"c1127", "c2019", "c1003", "c1008", "c1023"}
	enemyPicks = []string{"c1023", "c1003", "c2005", "c1127", "c2019"}
)

func rawBattle(requesterFirstPick bool) *api.RawBattle {
	return &api.RawBattle{
		NicknameNo:            111,
		WorldCode:             "world_global",
		MatchPlayerNicknameNo: 222,
		BattleSeq:             "987654321",
		SeasonCode:            "pvp_rta_ss12",
		GradeCode:             "legend",
		EnemyGradeCode:        "emperor",
		EnemyWorldCode:        "world_kor",
		EnemyNickNo:           "rival",
		IsWin:                 1,
		BattleDay:             "2023-10-18 14:55:39.0",
		TurnCount:             42,
		MyDeck:                deck([]string{"c1127", "c9001"}, myPicks, "c1003", requesterFirstPick, "c2019"),
		EnemyDeck:             deck([]string{"c9001", "c2005"}, enemyPicks, "c2005", false, ""),
		TeamBattleInfo:        draftFragment(myPicks...),
		TeamBattleInfoEnemy:   draftFragment(enemyPicks...),
		BattleInfoExtra:       `"speed_list":[201,198,187]`,
	}
}

func TestConvertRequesterFirstPick(t *testing.T) {
	n := testNormalizer()

	b, err := n.Convert(rawBattle(true))
	require.NoError(t, err)

	require.Equal(t, int64(987654321), b.BattleID)
	require.Equal(t, "pvp_rta_ss12", b.SeasonCode)
	require.Equal(t, 42, b.TurnCount)

	// requester holds the first-pick flag, so canonical p1 is the requester
	require.Equal(t, int64(111), b.P1.ID)
	require.Equal(t, "world_global", b.P1.World)
	require.Equal(t, "legend", b.P1.Grade)
	require.True(t, b.P1.Win)
	require.Equal(t, int64(222), b.P2.ID)
	require.Equal(t, "emperor", b.P2.Grade)
	require.False(t, b.P2.Win)

	// exactly one side has first pick
	require.True(t, b.P1.FirstPick)
	require.False(t, b.P2.FirstPick)

	require.Equal(t, myPicks, b.P1.Picks)
	require.Equal(t, enemyPicks, b.P2.Picks)
}

func TestConvertRequesterSecondPick(t *testing.T) {
	n := testNormalizer()

	b, err := n.Convert(rawBattle(false))
	require.NoError(t, err)

	// requester lacks the first-pick flag, so slots swap: opponent is p1
	require.Equal(t, int64(222), b.P1.ID)
	require.Equal(t, "world_kor", b.P1.World)
	require.Equal(t, "emperor", b.P1.Grade)
	require.False(t, b.P1.Win)
	require.Equal(t, int64(111), b.P2.ID)
	require.True(t, b.P2.Win)

	require.True(t, b.P1.FirstPick)
	require.False(t, b.P2.FirstPick)

	require.Equal(t, enemyPicks, b.P1.Picks)
	require.Equal(t, myPicks, b.P2.Picks)
}

func TestConvertOpponentWin(t *testing.T) {
	n := testNormalizer()

	raw := rawBattle(true)
	raw.IsWin = 2
	b, err := n.Convert(raw)
	require.NoError(t, err)

	require.False(t, b.P1.Win)
	require.True(t, b.P2.Win)
}

func TestDraftStagePartition(t *testing.T) {
	n := testNormalizer()

	b, err := n.Convert(rawBattle(true))
	require.NoError(t, err)

	require.Equal(t, [3][]string{{"c1127"}, {"c2019", "c1003"}, {"c1008", "c1023"}}, b.P1.PickStages)
	require.Equal(t, [3][]string{{"c1023", "c1003"}, {"c2005", "c1127"}, {"c2019"}}, b.P2.PickStages)

	for _, side := range []struct{ stages [3][]string; picks []string }{
		{b.P1.PickStages, b.P1.Picks},
		{b.P2.PickStages, b.P2.Picks},
	} {
		total := len(side.stages[0]) + len(side.stages[1]) + len(side.stages[2])
		require.Equal(t, len(side.picks), total)
	}
}

func TestDraftStageTruncation(t *testing.T) {
	require.Equal(t, [3][]string{{"a"}, {"b", "c"}, {"d"}}, partitionStages([]string{"a", "b", "c", "d"}, true))
	require.Equal(t, [3][]string{{"a", "b"}, {"c", "d"}, {}}, partitionStages([]string{"a", "b", "c", "d"}, false))
	require.Equal(t, [3][]string{{"a"}, {}, {}}, partitionStages([]string{"a"}, true))
}

func TestPostbanPosition(t *testing.T) {
	n := testNormalizer()

	b, err := n.Convert(rawBattle(true))
	require.NoError(t, err)

	// requester postban c1003 was picked third
	require.NotNil(t, b.P1.Postban)
	require.Equal(t, "c1003", *b.P1.Postban)
	require.NotNil(t, b.P1.PostbanPosition)
	require.Equal(t, 3, *b.P1.PostbanPosition)

	// opponent postban c2005 was picked third as well
	require.Equal(t, "c2005", *b.P2.Postban)
	require.Equal(t, 3, *b.P2.PostbanPosition)
}

func TestPostbanAbsent(t *testing.T) {
	n := testNormalizer()

	raw := rawBattle(true)
	raw.MyDeck = deck([]string{"c1127"}, myPicks, "", true, "")
	b, err := n.Convert(raw)
	require.NoError(t, err)

	require.Nil(t, b.P1.Postban)
	require.Nil(t, b.P1.PostbanPosition)
}

func TestPostbanNotInPickOrder(t *testing.T) {
	n := testNormalizer()

	raw := rawBattle(true)
	raw.MyDeck.HeroList = append(raw.MyDeck.HeroList, api.RawDeckHero{HeroCode: "c7777", Ban: 1})
	raw.MyDeck.HeroList[2].Ban = 0
	_, err := n.Convert(raw)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not present in pick order")
}

func TestCombinedPrebansDeduped(t *testing.T) {
	n := testNormalizer()

	b, err := n.Convert(rawBattle(true))
	require.NoError(t, err)

	// c9001 appears on both sides but only once in the union
	require.ElementsMatch(t, []string{"c1127", "c9001", "c2005"}, b.Prebans)
	require.Equal(t, []string{"c1127", "c9001"}, b.P1.Prebans)
	require.Equal(t, []string{"c9001", "c2005"}, b.P2.Prebans)
}

func TestUnitDetails(t *testing.T) {
	n := testNormalizer()

	b, err := n.Convert(rawBattle(true))
	require.NoError(t, err)
	require.Len(t, b.Units, 10)

	for _, u := range b.Units {
		require.Equal(t, "ef507", u.ArtifactCode)
		require.Equal(t, "Elbris Ritual Sword", u.ArtifactName)
		require.Equal(t, []string{"set_speed"}, u.EquipSets)
		require.Equal(t, "warrior", u.Role)
		require.NotZero(t, u.PickOrder)
		require.NotZero(t, u.Position)
	}
}

func TestUnitDetailNames(t *testing.T) {
	n := testNormalizer()

	b, err := n.Convert(rawBattle(true))
	require.NoError(t, err)

	names := map[string]string{}
	mvp := map[string]bool{}
	for _, u := range b.Units {
		names[u.HeroCode] = u.HeroName
		if u.MVP {
			mvp[u.HeroCode] = true
		}
	}
	require.Equal(t, "Abigail", names["c1127"])
	require.Equal(t, "Cidd", names["c1008"])
	require.True(t, mvp["c2019"])
	require.False(t, mvp["c1127"])
}

func TestUnknownUnitName(t *testing.T) {
	n := New(registry.NewUnitRegistry(), registry.NewArtefactRegistry())

	b, err := n.Convert(rawBattle(true))
	require.NoError(t, err)
	for _, u := range b.Units {
		require.Equal(t, registry.UnknownName, u.HeroName)
		require.Equal(t, registry.UnknownName, u.ArtifactName)
	}
}

func TestBattleDayConversion(t *testing.T) {
	ms, err := parseBattleDay("2023-10-18 14:55:39.0")
	require.NoError(t, err)
	require.Equal(t, int64(1697640939000), ms)

	_, err = parseBattleDay("not a date")
	require.Error(t, err)
}

func TestInitialSpeedsOpaque(t *testing.T) {
	n := testNormalizer()

	b, err := n.Convert(rawBattle(true))
	require.NoError(t, err)
	require.Equal(t, `{"speed_list":[201,198,187]}`, b.InitialSpeeds)

	raw := rawBattle(true)
	raw.BattleInfoExtra = ""
	b, err = n.Convert(raw)
	require.NoError(t, err)
	require.Equal(t, "", b.InitialSpeeds)
}

func TestMalformedDraftBlob(t *testing.T) {
	n := testNormalizer()

	raw := rawBattle(true)
	raw.TeamBattleInfo = `"my_team":[{"hero_code"`
	_, err := n.Convert(raw)
	require.Error(t, err)

	raw = rawBattle(true)
	raw.TeamBattleInfoEnemy = ""
	_, err = n.Convert(raw)
	require.Error(t, err)
}

func TestInvalidBattleSeq(t *testing.T) {
	n := testNormalizer()

	raw := rawBattle(true)
	raw.BattleSeq = "abc"
	_, err := n.Convert(raw)
	require.Error(t, err)
}

func TestSchemaVersion(t *testing.T) {
	n := testNormalizer()

	b, err := n.Convert(rawBattle(true))
	require.NoError(t, err)
	require.Equal(t, 1, b.SchemaVersion)
}
