package crawl

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"rta-crawler/internal/api"
	"rta-crawler/internal/config"
	"rta-crawler/internal/constants"
	"rta-crawler/internal/domain"
	"rta-crawler/internal/frontier"
	"rta-crawler/internal/metrics"
	"rta-crawler/internal/normalizer"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type BattleSyncOptions struct {
	// number of players to refresh, picked oldest-synced-first
	PageSize int
	Workers  int
	// when set, opponents discovered in fetched histories are synced in the
	// same run instead of waiting for a future page
	Discover bool
}

func (o *BattleSyncOptions) applyDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = constants.DefaultSyncPageSize
	}
	if o.Workers <= 0 {
		o.Workers = constants.DefaultWorkers
	}
}

type BattleSyncResult struct {
	PlayersSynced     int
	BattlesIngested   int
	PlayersDiscovered int
}

// BattleSync refreshes known players incrementally: per player it fetches the
// battle history, normalizes it, persists everything past the player's
// watermark, and advances the watermark. Opponents surfacing in histories are
// recorded as a byproduct, which keeps the player set fresh without a second
// full crawl.
type BattleSync struct {
	api     GameAPI
	players PlayerStore
	battles BattleStore
	norm    *normalizer.Normalizer
	metrics *metrics.Registry
	logger  zerolog.Logger
	season  string
}

func NewBattleSync(
	apiClient GameAPI,
	players PlayerStore,
	battles BattleStore,
	norm *normalizer.Normalizer,
	reg *metrics.Registry,
	cfg *config.Config,
	logger zerolog.Logger,
) *BattleSync {
	return &BattleSync{
		api:     apiClient,
		players: players,
		battles: battles,
		norm:    norm,
		metrics: reg,
		logger:  logger,
		season:  cfg.SeasonCode,
	}
}

// syncState is the per-run shared state: which identity keys are known, which
// players still need processing, and the running totals.
type syncState struct {
	known *discoverySet

	mu      sync.Mutex
	targets map[string]domain.Player

	synced     atomic.Int64
	ingested   atomic.Int64
	discovered atomic.Int64
}

func (s *syncState) putTarget(p domain.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[p.Key()] = p
}

func (s *syncState) target(key string) (domain.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.targets[key]
	return p, ok
}

func (s *BattleSync) Run(ctx context.Context, opts BattleSyncOptions) (*BattleSyncResult, error) {
	opts.applyDefaults()

	s.logger.Info().
		Int("page_size", opts.PageSize).
		Int("workers", opts.Workers).
		Bool("discover", opts.Discover).
		Str("season", s.season).
		Msg("starting battle sync")

	// seed the discovery set with every already-persisted player so
	// opponents are only recorded once across runs
	existing, err := s.players.ScanAll(ctx, s.season)
	if err != nil {
		return nil, fmt.Errorf("failed to scan players: %w", err)
	}
	state := &syncState{
		known:   newDiscoverySet(),
		targets: map[string]domain.Player{},
	}
	for _, p := range existing {
		state.known.seed(p.Key())
	}

	page, err := s.players.PageByOldestSync(ctx, opts.PageSize, s.season)
	if err != nil {
		return nil, fmt.Errorf("failed to page players: %w", err)
	}

	queue := frontier.NewQueue()
	for _, p := range page {
		state.putTarget(p)
		queue.Push(frontier.Task{Kind: frontier.TaskBattleHistory, UserID: p.UserID, World: p.World})
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, _ := errgroup.WithContext(workerCtx)
	for i := 0; i < opts.Workers; i++ {
		name := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			return s.worker(workerCtx, name, queue, state, opts)
		})
	}

	if err := queue.Join(ctx); err != nil {
		cancel()
		g.Wait()
		return nil, fmt.Errorf("battle sync interrupted: %w", err)
	}

	cancel()
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// opponents discovered by the last few tasks may not have been persisted
	// by any worker yet
	if leftover := state.known.drain(); len(leftover) > 0 {
		if err := s.players.UpsertBatch(ctx, leftover, s.season); err != nil {
			return nil, fmt.Errorf("failed to persist discovered players: %w", err)
		}
	}

	result := &BattleSyncResult{
		PlayersSynced:     int(state.synced.Load()),
		BattlesIngested:   int(state.ingested.Load()),
		PlayersDiscovered: int(state.discovered.Load()),
	}
	s.logger.Info().
		Int("players_synced", result.PlayersSynced).
		Int("battles_ingested", result.BattlesIngested).
		Int("players_discovered", result.PlayersDiscovered).
		Msg("battle sync finished")
	return result, nil
}

func (s *BattleSync) worker(ctx context.Context, name string, queue *frontier.Queue, state *syncState, opts BattleSyncOptions) error {
	logger := s.logger.With().Str("worker", name).Logger()

	for {
		task, err := queue.Pop(ctx)
		if err != nil {
			return nil
		}

		key := domain.PlayerKey(task.UserID, task.World)
		player, ok := state.target(key)
		if !ok {
			// defensive: every queued task was registered as a target
			player = domain.Player{UserID: task.UserID, World: task.World}
		}

		// a single bad player must not stop the pool or block the queue
		// join; the task completes either way
		if err := s.syncPlayer(ctx, logger, queue, state, player, opts); err != nil {
			s.metrics.UpstreamErrors.Inc()
			logger.Warn().Err(err).Str("player", key).Msg("player sync failed")
		} else {
			state.synced.Add(1)
			s.metrics.PlayersSynced.Inc()
		}

		queue.Done()
	}
}

func (s *BattleSync) syncPlayer(ctx context.Context, logger zerolog.Logger, queue *frontier.Queue, state *syncState, player domain.Player, opts BattleSyncOptions) error {
	key := player.Key()

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	resp, err := s.api.GetBattleList(apiCtx, player.UserID, player.World, s.season)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to fetch battle list: %w", err)
	}

	rawBattles := resp.ResultBody.BattleList
	if len(rawBattles) == 0 {
		// nothing to ingest and no defined max battle id; leave the
		// watermark untouched and let a later run retry
		logger.Debug().Str("player", key).Msg("empty battle list, skipping watermark update")
		return nil
	}

	// the watermark advances to the max id over the raw list, so a page
	// whose battles all get filtered out is still not refetched
	maxBattleID, err := maxRawBattleID(rawBattles)
	if err != nil {
		return err
	}

	var watermark int64
	if player.LastBattleID != nil {
		watermark = *player.LastBattleID
	}

	battles := make([]domain.Battle, 0, len(rawBattles))
	for i := range rawBattles {
		battle, err := s.norm.Convert(&rawBattles[i])
		if err != nil {
			return fmt.Errorf("failed to normalize battle: %w", err)
		}
		battles = append(battles, *battle)
	}

	var filtered []domain.Battle
	for _, b := range battles {
		if b.BattleID <= watermark || b.SeasonCode != s.season {
			continue
		}
		if !constants.RankAllowed(b.P1.Grade) && !constants.RankAllowed(b.P2.Grade) {
			continue
		}
		filtered = append(filtered, b)
	}

	s.collectOpponents(queue, state, rawBattles, opts)

	if fresh := state.known.drain(); len(fresh) > 0 {
		if err := s.players.UpsertBatch(ctx, fresh, s.season); err != nil {
			return fmt.Errorf("failed to persist discovered players: %w", err)
		}
	}

	if len(filtered) > 0 {
		if err := s.battles.UpsertBatch(ctx, filtered, s.season); err != nil {
			return fmt.Errorf("failed to persist battles: %w", err)
		}
		state.ingested.Add(int64(len(filtered)))
		s.metrics.BattlesIngested.Add(float64(len(filtered)))
	}

	rank := resolveRank(player, filtered)
	if err := s.players.UpdateWatermark(ctx, player.UserID, player.World, s.season, time.Now().UnixMilli(), maxBattleID, rank); err != nil {
		return fmt.Errorf("failed to update watermark: %w", err)
	}

	logger.Info().
		Str("player", key).
		Int("fetched", len(rawBattles)).
		Int("ingested", len(filtered)).
		Int64("watermark", maxBattleID).
		Msg("player synced")
	return nil
}

func (s *BattleSync) collectOpponents(queue *frontier.Queue, state *syncState, rawBattles []api.RawBattle, opts BattleSyncOptions) {
	for i := range rawBattles {
		raw := &rawBattles[i]
		if raw.SeasonCode != s.season || !constants.RankAllowed(raw.EnemyGradeCode) {
			continue
		}
		opponent := domain.Player{
			UserID:        raw.MatchPlayerNicknameNo,
			World:         raw.EnemyWorldCode,
			Name:          raw.EnemyNickNo,
			LastKnownRank: raw.EnemyGradeCode,
		}
		if !state.known.add(opponent) {
			continue
		}
		state.discovered.Add(1)
		s.metrics.PlayersDiscovered.Inc()
		if opts.Discover {
			state.putTarget(opponent)
			queue.Push(frontier.Task{Kind: frontier.TaskBattleHistory, UserID: opponent.UserID, World: opponent.World})
		}
	}
}

func maxRawBattleID(rawBattles []api.RawBattle) (int64, error) {
	var max int64
	for i := range rawBattles {
		id, err := strconv.ParseInt(rawBattles[i].BattleSeq, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid battle_seq %q: %w", rawBattles[i].BattleSeq, err)
		}
		if id > max {
			max = id
		}
	}
	return max, nil
}

// resolveRank picks the refreshed player's new rank from the newest surviving
// battle, reading the side that actually belongs to the player rather than
// assuming p1. Falls back to the stored rank when no surviving battle
// contains the player.
func resolveRank(player domain.Player, battles []domain.Battle) string {
	rank := player.LastKnownRank
	var newest int64 = -1
	for _, b := range battles {
		if b.BattleID <= newest {
			continue
		}
		for _, side := range []domain.Side{b.P1, b.P2} {
			if side.ID == player.UserID && side.World == player.World {
				rank = side.Grade
				newest = b.BattleID
				break
			}
		}
	}
	return rank
}
