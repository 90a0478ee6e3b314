package api

import (
	"context"
	"strings"

	"contracthub/api/handlers/approvals"
	"contracthub/api/handlers/contracts"
	"contracthub/api/handlers/events"
	"contracthub/api/handlers/signatures"
	"contracthub/api/handlers/templates"
	"contracthub/internal/auth"
	"contracthub/internal/config"
	"contracthub/internal/contract"
	"contracthub/internal/directory"
	"contracthub/internal/infra"
	"contracthub/internal/infra/queue"
	"contracthub/internal/lock"
	"contracthub/internal/logger"
	"contracthub/internal/notification"
	"contracthub/internal/signature"
	"contracthub/internal/worker"
	"contracthub/internal/workflow"
	"contracthub/internal/workflow/approval"
	workflowTpl "contracthub/internal/workflow/template"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppContainer 应用依赖容器
type AppContainer struct {
	DB     *gorm.DB
	Config *config.Config
	Logger *zap.Logger

	RedisClient redis.UniversalClient
	QueueClient queue.Client
	Worker      *worker.Server

	JWT       *auth.JWTService
	Directory directory.Directory
	Locker    lock.Locker
	EventBus  *notification.EventBus
	Streamer  *notification.Streamer
	Notifier  notification.Notifier

	Contracts *contract.Store
	Templates *workflow.TemplateService
	Engine    *approval.Engine
	Tracker   *signature.Tracker
}

// Handlers HTTP 处理器集合
type Handlers struct {
	Contracts  *contracts.Handler
	Approvals  *approvals.Handler
	Signatures *signatures.Handler
	Templates  *templates.TemplateHandler
	Events     *events.WebSocketHandler
}

// Models 返回全部需要迁移的模型
func Models() []any {
	var models []any
	models = append(models, directory.Models()...)
	models = append(models, contract.Models()...)
	models = append(models, workflow.Models()...)
	models = append(models, approval.Models()...)
	models = append(models, signature.Models()...)
	return models
}

// InitContainer 初始化应用容器
// Redis 不可用时分布式锁、目录缓存与事件队列退回进程内实现
func InitContainer(db *gorm.DB, cfg *config.Config, log *zap.Logger) (*AppContainer, error) {
	if log == nil {
		log = logger.OrNop()
	}
	container := &AppContainer{
		DB:     db,
		Config: cfg,
		Logger: log,
	}

	container.initRedis(cfg)
	container.initDirectory(cfg)
	container.initLocker(cfg)
	container.initNotification(cfg)

	if err := container.initWorkflow(cfg); err != nil {
		return nil, err
	}
	container.JWT = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, container.RedisClient)
	return container, nil
}

// InitHandlers 初始化所有 Handlers
func (c *AppContainer) InitHandlers() *Handlers {
	return &Handlers{
		Contracts:  contracts.NewHandler(c.Contracts, c.Engine),
		Approvals:  approvals.NewHandler(c.Engine),
		Signatures: signatures.NewHandler(c.Tracker),
		Templates:  templates.NewTemplateHandler(c.Templates),
		Events:     events.NewWebSocketHandler(c.Streamer, c.Contracts),
	}
}

// SeedTemplates 加载配置中的预置模板
func (c *AppContainer) SeedTemplates(ctx context.Context) {
	seeder := workflowTpl.NewSeeder(c.Templates, c.Logger)
	if _, err := seeder.Seed(ctx, c.Config.Approval.TemplatesPath); err != nil {
		c.Logger.Warn("预置模板初始化存在失败项", zap.Error(err))
	}
}

// Close 释放容器持有的外部连接
func (c *AppContainer) Close() {
	if c.Worker != nil {
		c.Worker.Shutdown()
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			c.Logger.Warn("关闭队列客户端失败", zap.Error(err))
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("关闭 Redis 连接失败", zap.Error(err))
		}
	}
}

func (c *AppContainer) initRedis(cfg *config.Config) {
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	if !cfg.Redis.Enabled() {
		c.Logger.Info("未配置 Redis，使用进程内锁与直连目录")
		return
	}

	rdb, err := infra.InitRedis(&cfg.Redis, c.Logger)
	if err != nil {
		c.Logger.Warn("Redis 不可用，分布式锁、目录缓存与事件队列将退回进程内实现", zap.Error(err))
		return
	}
	c.RedisClient = rdb
}

func (c *AppContainer) initDirectory(cfg *config.Config) {
	var dir directory.Directory = directory.NewGormDirectory(c.DB)
	if cfg.Directory.CacheEnabled && c.RedisClient != nil {
		dir = directory.NewCachedDirectory(dir, c.RedisClient, cfg.Directory.CacheTTL())
		c.Logger.Info("用户目录缓存已启用", zap.Duration("ttl", cfg.Directory.CacheTTL()))
	}
	c.Directory = dir
}

func (c *AppContainer) initLocker(cfg *config.Config) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Approval.Locker))
	if mode == "redis" {
		if c.RedisClient != nil {
			c.Locker = lock.NewRedisLocker(c.RedisClient, cfg.Approval.LockTTL())
			c.Logger.Info("合同锁使用 Redis 实现", zap.Duration("ttl", cfg.Approval.LockTTL()))
			return
		}
		c.Logger.Warn("Redis 不可用，合同锁退回进程内实现")
	}
	c.Locker = lock.NewLocalLocker()
}

// initNotification 事件先进入进程内总线供 WebSocket 订阅，
// 启用队列时再投递到 asynq，由 Worker 调用日志与 Webhook 通道；否则在提交后直接投递
func (c *AppContainer) initNotification(cfg *config.Config) {
	c.EventBus = notification.NewEventBus(nil)
	c.Streamer = notification.NewStreamer(c.EventBus, notification.WithStreamerLogger(c.Logger))
	delivery := notification.NewMultiNotifier().Add("log", notification.NewLogNotifier(c.Logger))
	if len(cfg.Webhooks) > 0 {
		delivery.Add("webhook", notification.NewWebhookNotifier(webhookEndpoints(cfg.Webhooks),
			notification.WithWebhookLogger(c.Logger)))
	}

	multi := notification.NewMultiNotifier().Add("bus", c.EventBus)
	if cfg.Queue.Enabled && c.RedisClient != nil {
		c.QueueClient = queue.NewClient(cfg.Redis, cfg.Queue)
		c.Worker = worker.NewServer(cfg.Redis, cfg.Queue, delivery, c.Logger)
		multi.Add("queue", notification.NewQueueNotifier(c.QueueClient))
	} else {
		multi.Add("delivery", delivery)
	}
	c.Notifier = multi
}

func webhookEndpoints(hooks []config.WebhookConfig) []notification.WebhookEndpoint {
	endpoints := make([]notification.WebhookEndpoint, 0, len(hooks))
	for _, h := range hooks {
		ep := notification.WebhookEndpoint{Name: h.Name, URL: h.URL, Secret: h.Secret, Headers: h.Headers}
		for _, e := range h.Events {
			ep.Events = append(ep.Events, notification.EventType(e))
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints
}

func (c *AppContainer) initWorkflow(cfg *config.Config) error {
	variant, err := approval.ParseVariant(cfg.Approval.DefaultVariant)
	if err != nil {
		return err
	}

	c.Contracts = contract.NewStore(c.DB)
	c.Templates = workflow.NewTemplateService(c.DB)

	resolver := approval.NewResolver(c.Directory,
		approval.WithLookupTimeout(cfg.Approval.LookupTimeout()),
		approval.WithResolverLogger(c.Logger),
	)
	c.Engine = approval.NewEngine(c.DB, c.Directory,
		approval.WithResolver(resolver),
		approval.WithLocker(c.Locker),
		approval.WithNotifier(c.Notifier),
		approval.WithDefaultVariant(variant),
		approval.WithEngineLogger(c.Logger),
	)
	c.Tracker = signature.NewTracker(c.DB, c.Directory,
		signature.WithLocker(c.Locker),
		signature.WithNotifier(c.Notifier),
		signature.WithDefaultExpiry(cfg.Signature.DefaultExpiry()),
		signature.WithLogger(c.Logger),
	)
	return nil
}
