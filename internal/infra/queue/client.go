package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contracthub/internal/config"
	"contracthub/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueContractEvent(ctx context.Context, payload tasks.ContractEventPayload) error
	Close() error
}

type asynqClient struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// RedisOpt 由 Redis 配置生成 asynq 连接参数
func RedisOpt(cfg config.RedisConfig) asynq.RedisConnOpt {
	switch cfg.Mode {
	case "sentinel":
		return asynq.RedisFailoverClientOpt{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    cfg.SentinelAddrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
		}
	case "cluster":
		return asynq.RedisClusterClientOpt{
			Addrs:    cfg.ClusterAddrs,
			Password: cfg.Password,
		}
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewClient 创建任务队列客户端
func NewClient(redisCfg config.RedisConfig, queueCfg config.QueueConfig) Client {
	queue := queueCfg.Name
	if queue == "" {
		queue = "events"
	}
	maxRetry := queueCfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &asynqClient{
		client:   asynq.NewClient(RedisOpt(redisCfg)),
		queue:    queue,
		maxRetry: maxRetry,
	}
}

// EnqueueContractEvent 投递合同事件
func (c *asynqClient) EnqueueContractEvent(ctx context.Context, payload tasks.ContractEventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeContractEvent, data)
	if _, err := c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(time.Minute),
		asynq.Queue(c.queue),
	); err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
