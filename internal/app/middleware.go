package app

import (
	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/middleware"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, cfg.JWTSecretKey, cfg.DevUserID),
	}
}
