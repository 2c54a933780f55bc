package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	SeasonCode       string
	DBPath           string
	StaticDir        string
	LogLevel         string
	MetricsAddr      string
	GameAPIBaseURL   string
	StaticAPIBaseURL string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		SeasonCode:       getEnv("SEASON_CODE", ""),
		DBPath:           getEnv("DB_PATH", "rta.db"),
		StaticDir:        getEnv("STATIC_DIR", "data/static"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MetricsAddr:      getEnv("METRICS_ADDR", ""),
		GameAPIBaseURL:   getEnv("GAME_API_BASE_URL", "https://epic7.gg.onstove.com/gameApi"),
		StaticAPIBaseURL: getEnv("STATIC_API_BASE_URL", "https://static.smilegatemegaport.com/gameRecord/epic7"),
	}

	if cfg.SeasonCode == "" {
		return nil, fmt.Errorf("SEASON_CODE is required")
	}

	logger.Info().
		Str("season_code", cfg.SeasonCode).
		Str("db_path", cfg.DBPath).
		Str("static_dir", cfg.StaticDir).
		Str("log_level", cfg.LogLevel).
		Str("metrics_addr", cfg.MetricsAddr).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
