package crawl

import (
	"context"
	"fmt"

	"rta-crawler/internal/config"
	"rta-crawler/internal/constants"
	"rta-crawler/internal/domain"
	"rta-crawler/internal/frontier"
	"rta-crawler/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type DiscoveryOptions struct {
	// soft ceiling on the discovery-set size; in-flight tasks may push the
	// final count slightly past it
	MaxPlayers int
	Workers    int
	// number of recommend-page tasks to seed; distinct calls return
	// different random samples, so several seeds amplify initial coverage
	SeedPages int
}

func (o *DiscoveryOptions) applyDefaults() {
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = constants.DefaultMaxPlayers
	}
	if o.Workers <= 0 {
		o.Workers = constants.DefaultWorkers
	}
	if o.SeedPages <= 0 {
		o.SeedPages = constants.DefaultSeedPages
	}
}

type DiscoveryResult struct {
	PlayersDiscovered int
}

// Discovery crawls the implicit opponent graph breadth-first: recommendation
// pages seed the frontier, every fetched battle history contributes the
// opponents of its battles as new frontier entries.
type Discovery struct {
	api     GameAPI
	players PlayerStore
	metrics *metrics.Registry
	logger  zerolog.Logger
	season  string
}

func NewDiscovery(apiClient GameAPI, players PlayerStore, reg *metrics.Registry, cfg *config.Config, logger zerolog.Logger) *Discovery {
	return &Discovery{
		api:     apiClient,
		players: players,
		metrics: reg,
		logger:  logger,
		season:  cfg.SeasonCode,
	}
}

func (d *Discovery) Run(ctx context.Context, opts DiscoveryOptions) (*DiscoveryResult, error) {
	opts.applyDefaults()

	d.logger.Info().
		Int("max_players", opts.MaxPlayers).
		Int("workers", opts.Workers).
		Int("seed_pages", opts.SeedPages).
		Str("season", d.season).
		Msg("starting player discovery")

	queue := frontier.NewQueue()
	seen := newDiscoverySet()

	for i := 0; i < opts.SeedPages; i++ {
		queue.Push(frontier.Task{Kind: frontier.TaskRecommendPage})
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, _ := errgroup.WithContext(workerCtx)
	for i := 0; i < opts.Workers; i++ {
		name := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			return d.worker(workerCtx, name, queue, seen, opts.MaxPlayers)
		})
	}

	if err := queue.Join(ctx); err != nil {
		cancel()
		g.Wait()
		return nil, fmt.Errorf("discovery interrupted: %w", err)
	}

	cancel()
	if err := g.Wait(); err != nil {
		return nil, err
	}

	discovered := seen.drain()
	if err := d.players.UpsertBatch(ctx, discovered, d.season); err != nil {
		return nil, fmt.Errorf("failed to persist discovered players: %w", err)
	}

	d.logger.Info().Int("count", len(discovered)).Msg("discovered players persisted")
	return &DiscoveryResult{PlayersDiscovered: len(discovered)}, nil
}

func (d *Discovery) worker(ctx context.Context, name string, queue *frontier.Queue, seen *discoverySet, maxPlayers int) error {
	logger := d.logger.With().Str("worker", name).Logger()

	for {
		task, err := queue.Pop(ctx)
		if err != nil {
			return nil
		}

		// soft stop: past the ceiling, in-flight tasks drain without doing
		// further work
		if seen.size() > maxPlayers {
			queue.Done()
			continue
		}

		// one failed upstream call must not kill the worker or wedge the
		// queue join
		if err := d.handleTask(ctx, logger, queue, seen, task); err != nil {
			d.metrics.UpstreamErrors.Inc()
			logger.Warn().Err(err).Int("kind", int(task.Kind)).Msg("discovery task failed")
		}

		logger.Debug().
			Int("discovered", seen.size()).
			Int("queued", queue.Len()).
			Msg("task done")
		queue.Done()
	}
}

func (d *Discovery) handleTask(ctx context.Context, logger zerolog.Logger, queue *frontier.Queue, seen *discoverySet, task frontier.Task) error {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	switch task.Kind {
	case frontier.TaskRecommendPage:
		resp, err := d.api.GetRecommendList(apiCtx)
		if err != nil {
			return fmt.Errorf("failed to fetch recommend list: %w", err)
		}
		for _, rec := range resp.ResultBody.RecommendList {
			// the recommend endpoint carries no grade; entries are the top
			// bracket by construction
			d.enqueueIfNew(queue, seen, domain.Player{
				UserID:        rec.NickNo,
				World:         rec.WorldCode,
				Name:          rec.Nickname,
				LastKnownRank: constants.RankLegend,
			}, d.season)
		}

	case frontier.TaskBattleHistory:
		resp, err := d.api.GetBattleList(apiCtx, task.UserID, task.World, d.season)
		if err != nil {
			return fmt.Errorf("failed to fetch battle list for %s: %w", domain.PlayerKey(task.UserID, task.World), err)
		}
		for _, battle := range resp.ResultBody.BattleList {
			// a player is only ever discovered through someone else's battle
			// record, so the opponent is the candidate here
			d.enqueueIfNew(queue, seen, domain.Player{
				UserID:        battle.MatchPlayerNicknameNo,
				World:         battle.EnemyWorldCode,
				Name:          battle.EnemyNickNo,
				LastKnownRank: battle.EnemyGradeCode,
			}, battle.SeasonCode)

		}

	default:
		logger.Warn().Int("kind", int(task.Kind)).Msg("unknown task kind")
	}

	return nil
}

func (d *Discovery) enqueueIfNew(queue *frontier.Queue, seen *discoverySet, candidate domain.Player, matchSeason string) {
	if !constants.RankAllowed(candidate.LastKnownRank) || matchSeason != d.season {
		return
	}
	if !seen.add(candidate) {
		return
	}
	d.metrics.PlayersDiscovered.Inc()
	queue.Push(frontier.Task{
		Kind:   frontier.TaskBattleHistory,
		UserID: candidate.UserID,
		World:  candidate.World,
	})
}
