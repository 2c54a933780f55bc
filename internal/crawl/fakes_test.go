package crawl

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"rta-crawler/internal/api"
	"rta-crawler/internal/domain"
)

// fakeGameAPI serves canned recommend pages and per-player battle histories.
type fakeGameAPI struct {
	mu        sync.Mutex
	recommend []api.RecommendedPlayer
	battles   map[string][]api.RawBattle
	errs      map[string]error

	recommendCalls int
	battleCalls    map[string]int
}

func newFakeGameAPI() *fakeGameAPI {
	return &fakeGameAPI{
		battles:     map[string][]api.RawBattle{},
		errs:        map[string]error{},
		battleCalls: map[string]int{},
	}
}

func (f *fakeGameAPI) GetRecommendList(ctx context.Context) (*api.RecommendListResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recommendCalls++
	return &api.RecommendListResponse{
		ResultBody: api.RecommendListBody{RecommendList: f.recommend},
	}, nil
}

func (f *fakeGameAPI) GetBattleList(ctx context.Context, userID int64, world, season string) (*api.BattleListResponse, error) {
	key := domain.PlayerKey(userID, world)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.battleCalls[key]++
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return &api.BattleListResponse{
		ResultBody: api.BattleListBody{
			NickNo:     userID,
			WorldCode:  world,
			BattleList: f.battles[key],
		},
	}, nil
}

func (f *fakeGameAPI) battleCallCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.battleCalls[key]
}

type watermarkUpdate struct {
	updateTime   int64
	lastBattleID int64
	rank         string
}

// fakePlayerStore keeps players in memory and records watermark updates.
type fakePlayerStore struct {
	mu         sync.Mutex
	existing   []domain.Player
	page       []domain.Player
	upserted   map[string]domain.Player
	watermarks map[string]watermarkUpdate
}

func newFakePlayerStore() *fakePlayerStore {
	return &fakePlayerStore{
		upserted:   map[string]domain.Player{},
		watermarks: map[string]watermarkUpdate{},
	}
}

func (f *fakePlayerStore) UpsertBatch(ctx context.Context, players []domain.Player, season string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range players {
		f.upserted[p.Key()] = p
	}
	return nil
}

func (f *fakePlayerStore) UpdateWatermark(ctx context.Context, userID int64, world, season string, updateTime, lastBattleID int64, lastRank string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watermarks[domain.PlayerKey(userID, world)] = watermarkUpdate{
		updateTime:   updateTime,
		lastBattleID: lastBattleID,
		rank:         lastRank,
	}
	return nil
}

func (f *fakePlayerStore) PageByOldestSync(ctx context.Context, count int, season string) ([]domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if count < len(f.page) {
		return f.page[:count], nil
	}
	return f.page, nil
}

func (f *fakePlayerStore) ScanAll(ctx context.Context, season string) ([]domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing, nil
}

func (f *fakePlayerStore) upsertedPlayer(key string) (domain.Player, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.upserted[key]
	return p, ok
}

func (f *fakePlayerStore) watermark(key string) (watermarkUpdate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.watermarks[key]
	return w, ok
}

// fakeBattleStore collects upserted battles by id.
type fakeBattleStore struct {
	mu       sync.Mutex
	upserted map[int64]domain.Battle
}

func newFakeBattleStore() *fakeBattleStore {
	return &fakeBattleStore{upserted: map[int64]domain.Battle{}}
}

func (f *fakeBattleStore) UpsertBatch(ctx context.Context, battles []domain.Battle, season string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range battles {
		f.upserted[b.BattleID] = b
	}
	return nil
}

func (f *fakeBattleStore) battle(id int64) (domain.Battle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.upserted[id]
	return b, ok
}

func (f *fakeBattleStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserted)
}

var (
	testMyPicks    = []string{"c1127", "c2019", "c1003", "c1008", "c1023"}
	testEnemyPicks = []string{"c1023", "c1003", "c2005", "c1127", "c2019"}
)

func testDraftFragment(codes []string) string {
	entries := make([]string, len(codes))
	for i, code := range codes {
		entries[i] = fmt.Sprintf(
			`{"hero_code":%q,"pick_order":%d,"location_no":%d,"job_cd":"warrior","artifact":"","set_list":[]}`,
			code, i+1, i+1,
		)
	}
	return fmt.Sprintf(`"my_team":[%s]`, strings.Join(entries, ","))
}

func testDeck(picks []string, firstPick bool) api.RawDeck {
	heroes := make([]api.RawDeckHero, len(picks))
	for i, code := range picks {
		h := api.RawDeckHero{HeroCode: code}
		if firstPick && i == 0 {
			h.FirstPick = 1
		}
		heroes[i] = h
	}
	return api.RawDeck{PrebanList: []string{"c9001"}, HeroList: heroes}
}

type battleFixture struct {
	seq                string
	season             string
	requester          domain.Player
	requesterRank      string
	requesterFirstPick bool
	opponentID         int64
	opponentWorld      string
	opponentName       string
	opponentRank       string
}

// buildRawBattle produces a history entry as the upstream API reports it from
// the requester's point of view.
func buildRawBattle(fixture battleFixture) api.RawBattle {
	return api.RawBattle{
		NicknameNo:            fixture.requester.UserID,
		WorldCode:             fixture.requester.World,
		MatchPlayerNicknameNo: fixture.opponentID,
		BattleSeq:             fixture.seq,
		SeasonCode:            fixture.season,
		GradeCode:             fixture.requesterRank,
		EnemyGradeCode:        fixture.opponentRank,
		EnemyWorldCode:        fixture.opponentWorld,
		EnemyNickNo:           fixture.opponentName,
		IsWin:                 1,
		BattleDay:             "2023-10-18 14:55:39.0",
		TurnCount:             17,
		MyDeck:                testDeck(testMyPicks, fixture.requesterFirstPick),
		EnemyDeck:             testDeck(testEnemyPicks, !fixture.requesterFirstPick),
		TeamBattleInfo:        testDraftFragment(testMyPicks),
		TeamBattleInfoEnemy:   testDraftFragment(testEnemyPicks),
		BattleInfoExtra:       `"speed_list":[201,198]`,
	}
}
