package fx

import (
	"context"
	"database/sql"
	"path/filepath"

	"rta-crawler/internal/api"
	"rta-crawler/internal/config"
	"rta-crawler/internal/crawl"
	"rta-crawler/internal/database"
	"rta-crawler/internal/logger"
	"rta-crawler/internal/metrics"
	"rta-crawler/internal/normalizer"
	"rta-crawler/internal/registry"
	"rta-crawler/internal/repository"
	"rta-crawler/internal/static"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideDatabase(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) (*sql.DB, error) {
	db, err := database.New(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
	return db, nil
}

func ProvideUnitRegistry(cfg *config.Config) (*registry.UnitRegistry, error) {
	return registry.LoadUnitRegistry(filepath.Join(cfg.StaticDir, registry.UnitsFileName))
}

func ProvideArtefactRegistry(cfg *config.Config) (*registry.ArtefactRegistry, error) {
	return registry.LoadArtefactRegistry(filepath.Join(cfg.StaticDir, registry.ArtefactsFileName))
}

func ProvideDiscovery(
	client *api.Client,
	players *repository.PlayerRepository,
	reg *metrics.Registry,
	cfg *config.Config,
	log zerolog.Logger,
) *crawl.Discovery {
	return crawl.NewDiscovery(client, players, reg, cfg, log)
}

func ProvideBattleSync(
	client *api.Client,
	players *repository.PlayerRepository,
	battles *repository.BattleRepository,
	norm *normalizer.Normalizer,
	reg *metrics.Registry,
	cfg *config.Config,
	log zerolog.Logger,
) *crawl.BattleSync {
	return crawl.NewBattleSync(client, players, battles, norm, reg, cfg, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(ProvideDatabase),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewBattleRepository),
	fx.Provide(repository.NewRunRepository),
	// api client
	fx.Provide(api.NewClient),
	// reference data
	fx.Provide(ProvideUnitRegistry),
	fx.Provide(ProvideArtefactRegistry),
	fx.Provide(normalizer.New),
	// metrics
	fx.Provide(metrics.NewRegistry),
	// crawl pools
	fx.Provide(ProvideDiscovery),
	fx.Provide(ProvideBattleSync),
	// static catalog sync
	fx.Provide(static.NewSyncer),
)
