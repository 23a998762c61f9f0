package main

import (
	"encoding/json"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"charliesodds/internal/autoplay"
	"charliesodds/internal/betlog"
	"charliesodds/internal/config"
	"charliesodds/internal/games"
	"charliesodds/internal/handlers"
	"charliesodds/internal/ledger"
	"charliesodds/internal/limits"
	"charliesodds/internal/middleware"
	"charliesodds/internal/models"
	"charliesodds/internal/rng"
	"charliesodds/internal/session"
	"charliesodds/internal/settings"
	"charliesodds/internal/store"
)

func main() {
	logger := logrus.New()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	if cfg.Env == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	st := openStore(cfg, logger)

	sessions := session.NewManager(st, logger)
	lgr := ledger.New(sessions, logger)
	if active := sessions.Active(); active != nil {
		lgr.Bind(active)
	}

	stream := rng.NewStream(loadSeed(cfg, st, logger))
	betLog := betlog.New(st, logger)
	oracle := limits.NewOracle(st, logger)
	settingsService := settings.NewService(st, logger)

	wsHandler := handlers.NewWebSocketHandler(lgr, logger)

	clock := quartz.NewReal()
	blackjack := games.NewBlackjack(stream, lgr, betLog, oracle, wsHandler, logger)
	crash := games.NewCrash(clock, lgr, betLog, oracle, wsHandler, logger)

	schedulers := map[models.GameType]*autoplay.Scheduler{
		models.GameTypeBlackjack: autoplay.NewScheduler(blackjack, oracle, lgr, clock, logger),
		models.GameTypeCrash:     autoplay.NewScheduler(crash, oracle, lgr, clock, logger),
	}
	defer func() {
		for _, sched := range schedulers {
			sched.Stop()
		}
	}()

	tokens := session.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	authHandler := handlers.NewAuthHandler(sessions, lgr, tokens)
	userHandler := handlers.NewUserHandler(lgr, stream, st)
	gameHandler := handlers.NewGameHandler(blackjack, crash, betLog, settingsService, oracle)
	autoplayHandler := handlers.NewAutoplayHandler(schedulers)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", authHandler.Logout)
		protected.POST("/bonus", userHandler.ClaimDailyBonus)
		protected.PUT("/currency", userHandler.SetCurrency)
		protected.GET("/seed", userHandler.GetSeed)
		protected.POST("/seed", userHandler.SetSeed)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		gamesGroup := protected.Group("/games")
		{
			gamesGroup.GET("/history", gameHandler.GetHistory)
			gamesGroup.GET("/stats", gameHandler.GetStats)
			gamesGroup.DELETE("/history", gameHandler.ClearHistory)

			blackjackGroup := gamesGroup.Group("/blackjack")
			{
				blackjackGroup.POST("/deal", gameHandler.Deal)
				blackjackGroup.POST("/hit", gameHandler.Hit)
				blackjackGroup.POST("/stand", gameHandler.Stand)
				blackjackGroup.GET("/state", gameHandler.BlackjackState)
				blackjackGroup.GET("/settings", gameHandler.GetBlackjackSettings)
				blackjackGroup.PUT("/settings", gameHandler.SaveBlackjackSettings)
			}

			crashGroup := gamesGroup.Group("/crash")
			{
				crashGroup.POST("/start", gameHandler.StartCrash)
				crashGroup.POST("/cashout", gameHandler.CashoutCrash)
				crashGroup.GET("/state", gameHandler.CrashState)
				crashGroup.GET("/settings", gameHandler.GetCrashSettings)
				crashGroup.PUT("/settings", gameHandler.SaveCrashSettings)
			}

			autoplayGroup := gamesGroup.Group("/autoplay")
			{
				autoplayGroup.POST("/:game/start", autoplayHandler.Start)
				autoplayGroup.POST("/:game/stop", autoplayHandler.Stop)
				autoplayGroup.GET("/:game/status", autoplayHandler.Status)
			}
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminMiddleware())
		{
			admin.GET("/limits/:game", gameHandler.GetLimits)
			admin.PUT("/limits/:game", gameHandler.SetLimits)
		}
	}

	logger.WithField("port", cfg.Port).Info("Server starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

// openStore connects to Redis, falling back to the in-memory store so the
// simulator still runs without one.
func openStore(cfg *config.Config, logger *logrus.Logger) store.Store {
	redisStore, err := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, state will not survive restarts")
		return store.NewMemoryStore()
	}
	logger.WithField("addr", cfg.RedisAddr).Info("Connected to Redis")
	return redisStore
}

// loadSeed resolves the replayable stream seed: persisted value first, then
// the configured override, then a fresh random seed.
func loadSeed(cfg *config.Config, st store.Store, logger *logrus.Logger) string {
	if cfg.RNGSeed != "" {
		return cfg.RNGSeed
	}

	if raw, err := st.Get(store.KeySeed); err == nil {
		var seed string
		if json.Unmarshal(raw, &seed) == nil && seed != "" {
			return seed
		}
	}

	seed := rng.NewSeed()
	if raw, err := json.Marshal(seed); err == nil {
		if err := st.Set(store.KeySeed, raw); err != nil {
			logger.WithError(err).Warn("seed not persisted")
		}
	}
	logger.WithField("seed", seed).Info("Generated new RNG seed")
	return seed
}
