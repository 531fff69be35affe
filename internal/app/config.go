package app

import (
	"github.com/google/uuid"

	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/utils"
)

type Config struct {
	Mode           string
	Addr           string
	JWTSecretKey   string
	AllowedOrigins string
	CatalogDir     string
	OpenAIAPIKey   string
	OpenAIModel    string
	// DevUserID authenticates unauthenticated requests in development mode.
	DevUserID uuid.UUID
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Mode:           utils.GetEnv("APP_MODE", "development", log),
		Addr:           utils.GetEnv("APP_ADDR", ":8080", log),
		JWTSecretKey:   utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		AllowedOrigins: utils.GetEnv("ALLOWED_ORIGINS", "", log),
		CatalogDir:     utils.GetEnv("CATALOG_DIR", "catalog", log),
		OpenAIAPIKey:   utils.GetEnv("OPENAI_API_KEY", "", log),
		OpenAIModel:    utils.GetEnv("OPENAI_MODEL", "gpt-5.2", log),
	}
	if cfg.Mode == "development" {
		raw := utils.GetEnv("DEV_USER_ID", "00000000-0000-0000-0000-000000000001", log)
		if id, err := uuid.Parse(raw); err == nil {
			cfg.DevUserID = id
		} else {
			log.Warn("invalid DEV_USER_ID, dev auth fallback disabled", "value", raw)
		}
	}
	return cfg
}
