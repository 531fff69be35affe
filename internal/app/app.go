package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/db"
	"github.com/yungbote/learnloop-backend/internal/jobs"
	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/sse"
	"github.com/yungbote/learnloop-backend/internal/types"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Bus      *sse.Bus
	Registry *jobs.Registry
	cancel   context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	bus := sse.NewBus(log)

	// Generation jobs outlive their originating request; they stop only when
	// the app shuts down.
	baseCtx, cancel := context.WithCancel(context.Background())
	registry := jobs.NewRegistry(baseCtx, log)

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, bus, registry)
	if err != nil {
		cancel()
		log.Sync()
		return nil, err
	}

	if cfg.DevUserID != uuid.Nil {
		if err := ensureDevUser(theDB, cfg.DevUserID); err != nil {
			log.Warn("failed to seed dev user", "error", err)
		}
	}

	handlerset := wireHandlers(theDB, log, serviceset, registry, bus)
	middleware := wireMiddleware(log, cfg)
	router := wireRouter(cfg, handlerset, middleware)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Bus:      bus,
		Registry: registry,
		cancel:   cancel,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Starting HTTP server", "addr", a.Cfg.Addr, "mode", a.Cfg.Mode)
	return a.Router.Run(a.Cfg.Addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// ensureDevUser makes the development fallback identity a real row so
// foreign keys hold for courses created without a token.
func ensureDevUser(gdb *gorm.DB, id uuid.UUID) error {
	var count int64
	if err := gdb.Model(&types.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return gdb.Create(&types.User{
		ID:        id,
		Email:     "dev@localhost",
		CreatedAt: time.Now(),
	}).Error
}
