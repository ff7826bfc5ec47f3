package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "party-rooms/internal/handler/http"
	wsHandler "party-rooms/internal/handler/websocket"
	"party-rooms/internal/hub"
	gormpersistence "party-rooms/internal/infra/persistence/gorm"
	memorypersistence "party-rooms/internal/infra/persistence/memory"
	"party-rooms/internal/infra/setup"
	redisstate "party-rooms/internal/infra/state/redis"
	"party-rooms/internal/middleware"
	"party-rooms/internal/repository"
	"party-rooms/internal/service"
	"party-rooms/internal/tasks"
	"party-rooms/internal/worker"
)

const shareLinkPurgeSchedule = "@every 1h"

// App 包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	Store       repository.Store
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server

	membership     *service.MembershipService
	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
	stopBackground context.CancelFunc
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 服务层使用 logrus 的全局 logger，这里直接配置它
	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s, Format: %T)", logLevel.String(), log.Formatter)

	app := &App{Config: cfg, Log: log}

	// 1. 存储
	log.Info("Initializing infrastructure...")
	if cfg.StorageDriver == setup.DriverMemory {
		log.Warn("Using in-memory storage, data will be lost on restart")
		app.Store = memorypersistence.NewMemoryStore()
	} else {
		db, err := setup.InitDB(setup.DBOptions{
			Driver:   cfg.StorageDriver,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			Name:     cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		if err := setup.MigrateDB(db); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
		app.DB = db
		app.Store = gormpersistence.NewGormStore(db)
	}

	// 2. Redis：房间锁、事件分发、审计队列
	deps := service.Deps{
		Store:           app.Store,
		Policy:          service.HostPolicy{OfficialGating: cfg.OfficialOnly},
		SilenceDuration: cfg.SilenceDuration,
		ShareBaseURL:    cfg.ShareLinkBaseURL,
	}
	directAudit := service.NewStoreAuditSink(app.Store.Audits())
	var bus hub.EventBus
	if cfg.RedisEnabled() {
		redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
		app.RedisClient = redisClient
		app.redisClientOpt = asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		app.AsynqClient = asynq.NewClient(app.redisClientOpt)

		deps.Locker = redisstate.NewRoomLocker(redisClient, cfg.KeyPrefix, cfg.LockTTL)
		deps.Audit = worker.NewAuditEnqueuer(app.AsynqClient, directAudit)
		bus = redisstate.NewEventBus(redisClient, cfg.KeyPrefix)
		log.Info("Redis locker, event bus and task queue initialized")
	} else {
		log.Warn("REDIS_ADDR not set, running single-instance with in-process locks and events")
		deps.Audit = directAudit
	}
	log.Info("Infrastructure initialized successfully")

	// 3. Hub 与 Services
	app.Hub = hub.NewHub(bus)
	deps.Broadcaster = app.Hub
	sharedDeps := service.NewDeps(deps)

	authService, err := service.NewAuthService(app.Store.Users(), cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	roomService := service.NewRoomService(sharedDeps)
	app.membership = service.NewMembershipService(sharedDeps)
	messageService := service.NewMessageService(sharedDeps)
	realtimeService := service.NewRealtimeService(sharedDeps, messageService)
	app.Hub.Bind(realtimeService)
	log.Info("Services initialized")

	if app.RedisClient != nil {
		app.AsynqServer = worker.NewWorkerServer(app.redisClientOpt, app.Store.Audits(), app.membership, log)
	}

	// 4. 路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	if app.RedisClient != nil {
		router.Use(middleware.RateLimit(app.RedisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))
	}

	auth := middleware.Auth(cfg.JWTSecret)
	httpHandler.RegisterRoutes(router, auth, httpHandler.Handlers{
		Auth:       httpHandler.NewAuthHandler(authService),
		Room:       httpHandler.NewRoomHandler(roomService, service.NewGameSelectionService(sharedDeps)),
		Membership: httpHandler.NewMembershipHandler(app.membership),
		Game:       httpHandler.NewGameHandler(service.NewDiceService(sharedDeps), service.NewOneThingService(sharedDeps)),
		Message:    httpHandler.NewMessageHandler(messageService),
	})
	ws := wsHandler.NewWebSocketHandler(app.Hub, realtimeService, cfg.CORSOrigins)
	router.GET("/ws/room/:roomId", auth, ws.HandleConnection)
	log.Info("Router setup complete")

	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
		config.AllowCredentials = false
	} else {
		config.AllowOrigins = origins
	}
	return config
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopBackground = cancel

	go a.Hub.Run()
	go a.Hub.RunFanout(ctx)
	a.Log.Info("Hub routines started")

	if a.AsynqServer != nil {
		go a.AsynqServer.Start()
		a.registerPeriodicTasks()
	} else {
		go a.runLocalPurge(ctx)
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{Location: time.UTC})

	task, err := tasks.NewShareLinkPurgeTask(a.Config.ShareLinkRetention)
	if err != nil {
		a.Log.Errorf("Failed to create share link purge task: %v", err)
		return
	}
	entryID, err := scheduler.Register(shareLinkPurgeSchedule, task, asynq.Queue("default"))
	if err != nil {
		a.Log.Errorf("Could not register periodic share link purge task: %v", err)
		return
	}
	a.Log.Infof("Periodic share link purge registered with schedule '%s' (EntryID: %s)", shareLinkPurgeSchedule, entryID)

	if err := scheduler.Start(); err != nil {
		a.Log.Errorf("Asynq scheduler failed to start: %v", err)
		return
	}
	a.scheduler = scheduler
	a.Log.Info("Asynq scheduler started")
}

// runLocalPurge 在没有 Redis 时用进程内定时器清理分享链接
func (a *App) runLocalPurge(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := a.membership.PurgeStaleShareLinks(ctx, a.Config.ShareLinkRetention)
			if err != nil {
				a.Log.WithError(err).Warn("Local share link purge failed")
				continue
			}
			a.Log.WithField("deleted", deleted).Info("Local share link purge completed")
		}
	}
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.stopBackground != nil {
		a.stopBackground()
	}
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}
	a.Hub.Stop()
	a.Log.Info("Hub stopped, WebSocket clients closed.")

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		// WebSocket 的 token 参数不写入日志
		if c.Request.URL.RawQuery != "" && c.Query("token") == "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		switch {
		case errorMessage != "":
			entry.Error(errorMessage)
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
