package static

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rta-crawler/internal/api"
	"rta-crawler/internal/config"
	"rta-crawler/internal/constants"
	"rta-crawler/internal/registry"

	"github.com/rs/zerolog"
)

// Syncer refreshes the local reference-data files the registries load from.
// Runs out of band; the crawl commands only ever read the files it writes.
type Syncer struct {
	api    *api.Client
	dir    string
	logger zerolog.Logger
}

func NewSyncer(apiClient *api.Client, cfg *config.Config, logger zerolog.Logger) *Syncer {
	return &Syncer{
		api:    apiClient,
		dir:    cfg.StaticDir,
		logger: logger,
	}
}

func (s *Syncer) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create static dir: %w", err)
	}

	if err := s.syncUnits(ctx); err != nil {
		return err
	}
	return s.syncArtefacts(ctx)
}

func (s *Syncer) syncUnits(ctx context.Context) error {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	resp, err := s.api.GetHeroCatalog(apiCtx)
	if err != nil {
		return fmt.Errorf("failed to fetch hero catalog: %w", err)
	}

	units := make(map[string]registry.Unit, len(resp.En))
	for _, hero := range resp.En {
		units[hero.Code] = registry.Unit{
			ID:      hero.Code,
			Name:    hero.Name,
			Grade:   hero.Grade,
			Role:    hero.JobCd,
			Element: hero.AttributeCd,
		}
	}

	if err := s.writeJSON(registry.UnitsFileName, units); err != nil {
		return err
	}
	s.logger.Info().Int("count", len(units)).Msg("unit catalog synced")
	return nil
}

func (s *Syncer) syncArtefacts(ctx context.Context) error {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	resp, err := s.api.GetArtifactCatalog(apiCtx)
	if err != nil {
		return fmt.Errorf("failed to fetch artifact catalog: %w", err)
	}

	artefacts := make(map[string]registry.Artefact, len(resp.En))
	for _, artefact := range resp.En {
		artefacts[artefact.Code] = registry.Artefact{
			ID:   artefact.Code,
			Name: artefact.Name,
		}
	}

	if err := s.writeJSON(registry.ArtefactsFileName, artefacts); err != nil {
		return err
	}
	s.logger.Info().Int("count", len(artefacts)).Msg("artefact catalog synced")
	return nil
}

func (s *Syncer) writeJSON(name string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
