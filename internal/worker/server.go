package worker

import (
	"context"

	"contracthub/internal/config"
	"contracthub/internal/infra/queue"
	"contracthub/internal/notification"
	"contracthub/internal/worker/handlers"
	"contracthub/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewServer 创建事件投递 Worker，delivery 为实际的外部通知通道
func NewServer(
	redisCfg config.RedisConfig,
	queueCfg config.QueueConfig,
	delivery notification.Notifier,
	logger *zap.Logger,
) *Server {
	queueName := queueCfg.Name
	if queueName == "" {
		queueName = "events"
	}
	srv := asynq.NewServer(
		queue.RedisOpt(redisCfg),
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				queueName: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()

	eventHandler := handlers.NewEventHandler(delivery, logger)
	mux.HandleFunc(tasks.TypeContractEvent, eventHandler.HandleContractEvent)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}
}

// Run 启动 Worker 服务器
func (s *Server) Run() error {
	s.logger.Info("Worker 服务器启动中...")
	return s.server.Run(s.mux)
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	return s.server.Start(s.mux)
}

// Shutdown 停止 Worker 服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.server.Shutdown()
}
