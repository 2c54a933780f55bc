package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"

	"rta-crawler/internal/config"
	"rta-crawler/internal/constants"
	"rta-crawler/internal/crawl"
	"rta-crawler/internal/database"
	fxmodules "rta-crawler/internal/fx"
	"rta-crawler/internal/metrics"
	"rta-crawler/internal/repository"
	"rta-crawler/internal/static"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "sync-static":
		runSyncStatic(os.Args[2:])
	case "discover":
		runDiscover(os.Args[2:])
	case "sync-battles":
		runSyncBattles(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: crawler <command> [flags]

commands:
  sync-static    refresh the unit and artefact catalogs
  discover       crawl the opponent graph for new ranked players
  sync-battles   refresh battle histories for known players`)
}

// withRunID tags every log line of this invocation so interleaved runs stay
// distinguishable in shared log streams.
func withRunID() fx.Option {
	runID := uuid.New().String()
	return fx.Decorate(func(logger zerolog.Logger) zerolog.Logger {
		return logger.With().Str("run_id", runID).Logger()
	})
}

func runSyncStatic(args []string) {
	fs := flag.NewFlagSet("sync-static", flag.ExitOnError)
	fs.Parse(args)

	fx.New(
		fxmodules.Module,
		withRunID(),
		fx.Invoke(func(
			lc fx.Lifecycle,
			shutdowner fx.Shutdowner,
			syncer *static.Syncer,
			runs *repository.RunRepository,
			cfg *config.Config,
			logger zerolog.Logger,
		) {
			runJob(lc, shutdowner, logger, "static catalog sync", func(ctx context.Context) error {
				runID, err := runs.Start(ctx, "sync-static", cfg.SeasonCode)
				if err != nil {
					return err
				}
				if err := syncer.Run(ctx); err != nil {
					return err
				}
				return runs.Finish(ctx, runID, 0, 0)
			})
		}),
	).Run()
}

func runDiscover(args []string) {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	maxPlayers := fs.Int("max-players", constants.DefaultMaxPlayers, "soft ceiling on the number of players to discover")
	workers := fs.Int("workers", constants.DefaultWorkers, "number of concurrent crawl workers")
	seedPages := fs.Int("seed-pages", constants.DefaultSeedPages, "number of recommend pages used to seed the frontier")
	fs.Parse(args)

	fx.New(
		fxmodules.Module,
		withRunID(),
		fx.Invoke(func(
			lc fx.Lifecycle,
			shutdowner fx.Shutdowner,
			discovery *crawl.Discovery,
			runs *repository.RunRepository,
			db *sql.DB,
			reg *metrics.Registry,
			cfg *config.Config,
			logger zerolog.Logger,
		) {
			serveMetrics(lc, reg, cfg, logger)
			runJob(lc, shutdowner, logger, "player discovery", func(ctx context.Context) error {
				if err := database.EnsureSeasonIndexes(db, cfg.SeasonCode, logger); err != nil {
					return err
				}
				runID, err := runs.Start(ctx, "discover", cfg.SeasonCode)
				if err != nil {
					return err
				}
				result, err := discovery.Run(ctx, crawl.DiscoveryOptions{
					MaxPlayers: *maxPlayers,
					Workers:    *workers,
					SeedPages:  *seedPages,
				})
				if err != nil {
					return err
				}
				return runs.Finish(ctx, runID, result.PlayersDiscovered, 0)
			})
		}),
	).Run()
}

func runSyncBattles(args []string) {
	fs := flag.NewFlagSet("sync-battles", flag.ExitOnError)
	pageSize := fs.Int("page-size", constants.DefaultSyncPageSize, "number of players to refresh, oldest-synced first")
	workers := fs.Int("workers", constants.DefaultWorkers, "number of concurrent sync workers")
	discover := fs.Bool("discover", false, "also sync opponents discovered during this run")
	fs.Parse(args)

	fx.New(
		fxmodules.Module,
		withRunID(),
		fx.Invoke(func(
			lc fx.Lifecycle,
			shutdowner fx.Shutdowner,
			battleSync *crawl.BattleSync,
			runs *repository.RunRepository,
			db *sql.DB,
			reg *metrics.Registry,
			cfg *config.Config,
			logger zerolog.Logger,
		) {
			serveMetrics(lc, reg, cfg, logger)
			runJob(lc, shutdowner, logger, "battle sync", func(ctx context.Context) error {
				if err := database.EnsureSeasonIndexes(db, cfg.SeasonCode, logger); err != nil {
					return err
				}
				runID, err := runs.Start(ctx, "sync-battles", cfg.SeasonCode)
				if err != nil {
					return err
				}
				result, err := battleSync.Run(ctx, crawl.BattleSyncOptions{
					PageSize: *pageSize,
					Workers:  *workers,
					Discover: *discover,
				})
				if err != nil {
					return err
				}
				return runs.Finish(ctx, runID, result.PlayersDiscovered, result.BattlesIngested)
			})
		}),
	).Run()
}

// runJob runs a one-shot job inside the fx lifecycle: the app starts, the job
// runs in the background, and finishing the job shuts the app down with an
// exit code reflecting the outcome. SIGINT/SIGTERM cancel the job context and
// let in-flight work drain.
func runJob(lc fx.Lifecycle, shutdowner fx.Shutdowner, logger zerolog.Logger, name string, job func(context.Context) error) {
	jobCtx, jobCancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("job", name).Msg("job starting")
				if err := job(jobCtx); err != nil {
					logger.Error().Err(err).Str("job", name).Msg("job failed")
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				logger.Info().Str("job", name).Msg("job finished")
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			jobCancel()
			return nil
		},
	})
}

func serveMetrics(lc fx.Lifecycle, reg *metrics.Registry, cfg *config.Config, logger zerolog.Logger) {
	if cfg.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("metrics server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error().Err(err).Msg("metrics server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
