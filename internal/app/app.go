package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ai_mentor_backend/internal/config"
	"ai_mentor_backend/internal/controller"
	"ai_mentor_backend/internal/llm"
	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/repository"
	"ai_mentor_backend/internal/service"
	"ai_mentor_backend/internal/util"
	"ai_mentor_backend/pkg/configwatcher"
	"ai_mentor_backend/pkg/database"
	"ai_mentor_backend/pkg/logger"
	"ai_mentor_backend/pkg/monitoring"
	"ai_mentor_backend/pkg/security"
	"ai_mentor_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services        *services
	scheduler       *Scheduler
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user    *repository.UserRepository
	school  *repository.SchoolRepository
	content *repository.ContentRepository
	test    *repository.TestRepository
}

type services struct {
	access     *service.Access
	storage    *service.StorageService
	auth       *service.AuthService
	user       *service.UserService
	school     *service.SchoolService
	index      *service.IndexService
	content    *service.ContentService
	mastery    *service.MasteryService
	test       *service.TestService
	homework   *service.HomeworkService
	grader     *service.AIGrader
	submission *service.SubmissionService
	generation *service.GenerationService
	analytics  *service.AnalyticsService
	chat       *service.ChatService
	hub        *service.NotificationHub
}

type controllers struct {
	auth         *controller.AuthController
	user         *controller.UserController
	school       *controller.SchoolController
	content      *controller.ContentController
	test         *controller.TestController
	mastery      *controller.MasteryController
	homework     *controller.HomeworkController
	submission   *controller.SubmissionController
	analytics    *controller.AnalyticsController
	chat         *controller.ChatController
	notification *controller.NotificationController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:    repository.NewUserRepository(db),
		school:  repository.NewSchoolRepository(db),
		content: repository.NewContentRepository(db),
		test:    repository.NewTestRepository(db),
	}
}

// initLLM 模型与向量服务初始化失败时不阻止启动，相关接口返回 502
func initLLM(cfg *config.Config) (llm.Provider, llm.Embedder) {
	provider, err := llm.NewProvider(context.Background(), cfg.LLM)
	if err != nil {
		logger.Log.Warn("LLM 初始化失败，AI 功能不可用", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
		provider = llm.Disabled(err)
	}

	embedder, err := llm.NewEmbedder(cfg.Embedding)
	if err != nil {
		logger.Log.Warn("向量服务初始化失败，问答不做检索", zap.String("provider", cfg.Embedding.Provider), zap.Error(err))
		embedder = nil
	}
	return provider, embedder
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client, provider llm.Provider, embedder llm.Embedder) *services {
	s := &services{}
	s.hub = service.NewNotificationHub(rdb)
	s.hub.Upgrader.CheckOrigin = security.OriginChecker(cfg.CORS.AllowedOrigins)

	s.access = service.NewAccess(repos.school)
	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user, repos.school)
	s.school = service.NewSchoolService(repos.school, repos.user, s.access)

	s.index = service.NewIndexService(repos.content, embedder)
	s.content = service.NewContentService(repos.content, s.index, s.storage)

	s.mastery = service.NewMasteryService(db, cfg.Mastery, s.access)
	s.test = service.NewTestService(db, repos.test, repos.content, s.mastery)

	s.homework = service.NewHomeworkService(db, s.access, cfg.Grading)
	s.homework.Notifier = s.hub
	s.grader = service.NewAIGrader(provider, cfg.Grading)
	s.submission = service.NewSubmissionService(db, s.access, s.grader, cfg.Grading)
	s.submission.Notifier = s.hub
	s.generation = service.NewGenerationService(db, s.homework, provider, cfg.LLM)

	var cache *redis.Client
	if cfg.Analytics.CacheTTL > 0 {
		cache = rdb
	}
	s.analytics = service.NewAnalyticsService(db, s.access, s.mastery, s.storage, cache, cfg.Analytics)
	s.chat = service.NewChatService(db, embedder, provider, cfg.LLM, cfg.RAG)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth),
		user:         controller.NewUserController(s.user),
		school:       controller.NewSchoolController(s.school),
		content:      controller.NewContentController(s.content),
		test:         controller.NewTestController(s.test),
		mastery:      controller.NewMasteryController(s.mastery),
		homework:     controller.NewHomeworkController(s.homework, s.generation),
		submission:   controller.NewSubmissionController(s.submission),
		analytics:    controller.NewAnalyticsController(s.analytics),
		chat:         controller.NewChatController(s.chat),
		notification: controller.NewNotificationController(s.hub),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if cfg.RateLimit.MaxRequests > 0 && window > 0 {
		router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New 建立数据库、缓存与全部服务，HTTP 路由在 Run 时才注册
func New(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			// 缓存只用于学情分析，不可用时直接查库
			logger.Log.Warn("Redis 不可用，关闭缓存", zap.Error(err))
			rdb = nil
		}
	}

	provider, embedder := initLLM(cfg)
	return newApp(cfg, db, rdb, provider, embedder), nil
}

func newApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client, provider llm.Provider, embedder llm.Embedder) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}
	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, db, rdb, provider, embedder)
	go app.services.hub.Run()
	return app
}

// buildRouter 注册中间件与全部路由
func (a *App) buildRouter() (*gin.Engine, error) {
	if a.Config.Server.Mode != "" {
		gin.SetMode(a.Config.Server.Mode)
	}
	if err := util.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	router := gin.New()
	router.Use(gin.Recovery(), ginLogger())

	a.setupMiddlewares(router, a.Config)
	a.registerRoutes(router, a.initControllers(a.services, a.DB, a.Redis), a.Config)

	if a.Config.Storage.Type == "local" {
		router.Static("/uploads", a.Config.Storage.LocalPath)
	}
	a.Router = router
	return router, nil
}

// ginLogger 访问日志写入 zap
func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("requestID", c.GetString("request_id")))
	}
}

// ApplyConfig 热更新阈值类配置，数据库与模型连接不会重建
func (a *App) ApplyConfig(cfg *config.Config) {
	s := a.services
	s.mastery.ApplyConfig(cfg.Mastery)
	s.homework.ApplyConfig(cfg.Grading)
	s.submission.ApplyConfig(cfg.Grading)
	s.grader.ApplyConfig(cfg.Grading)
	s.analytics.ApplyConfig(cfg.Analytics)
	s.chat.ApplyConfig(cfg.RAG)

	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
	logger.Log.Info("配置已重新加载", zap.String("path", cfg.Path))
}

func (a *App) startBackgroundTasks(ctx context.Context) error {
	if a.Config.Scheduler.Enabled {
		sched, err := NewScheduler(a.services.homework, a.Config.Scheduler)
		if err != nil {
			return err
		}
		sched.Start()
		a.scheduler = sched
	}

	if a.Config.Path != "" {
		if err := configwatcher.Watch(ctx, a.Config.Path, a.ApplyConfig); err != nil {
			// 热更新失败不影响服务
			logger.Log.Warn("配置监听启动失败", zap.Error(err))
		}
	}
	return nil
}

// Migrate 执行建表迁移
func (a *App) Migrate() error {
	return database.Migrate(a.DB)
}

// CreateSuperAdmin 为新部署创建第一个平台账号
func (a *App) CreateSuperAdmin(ctx context.Context, in service.BootstrapAdminInput) (*model.User, error) {
	return a.services.user.CreateSuperAdmin(ctx, in)
}

// RecomputeMastery 批量重算掌握度，schoolID 为 nil 表示全部学校
func (a *App) RecomputeMastery(ctx context.Context, schoolID *uint) (students, changes int, err error) {
	return a.services.mastery.RecomputeSchool(ctx, schoolID)
}

// Reindex 重建段落向量索引，textbookID 为 0 表示全部教材
func (a *App) Reindex(ctx context.Context, textbookID uint, batch int) (int, error) {
	if a.services.index.Embedder == nil {
		return 0, errors.New("embedding provider is not configured")
	}
	return a.services.index.Reindex(ctx, textbookID, batch)
}

func (a *App) Run() error {
	monitoring.Init()

	if a.Config.Tracing.Enabled {
		tp, err := tracing.InitTracer(a.Config.Tracing.ServiceName, a.Config.Tracing.CollectorEndpoint)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		a.tracer = tp
	}

	if a.Config.AutoMigrate {
		if err := a.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.startBackgroundTasks(ctx); err != nil {
		return err
	}

	router, err := a.buildRouter()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: router,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info("Server exiting")
	return nil
}

// Close 释放调度器、追踪与连接
func (a *App) Close() {
	a.services.hub.Stop()
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
	_ = logger.Log.Sync()
}
