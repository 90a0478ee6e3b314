package notification

import (
	"context"
	"errors"
	"fmt"

	"contracthub/internal/logger"
	"contracthub/internal/metrics"

	"go.uber.org/zap"
)

// Notifier 通知器接口
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// NotifierFunc 函数适配器
type NotifierFunc func(ctx context.Context, evt Event) error

// Notify 实现 Notifier
func (f NotifierFunc) Notify(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// namedNotifier 带通道名称的通知器，用于指标
type namedNotifier struct {
	channel  string
	notifier Notifier
}

// MultiNotifier 多通道通知器
// 依次投递到所有通道，单个通道失败不影响其余通道
type MultiNotifier struct {
	channels []namedNotifier
}

// NewMultiNotifier 创建多通道通知器
func NewMultiNotifier() *MultiNotifier {
	return &MultiNotifier{}
}

// Add 注册通道，notifier 为 nil 时忽略
func (m *MultiNotifier) Add(channel string, notifier Notifier) *MultiNotifier {
	if notifier != nil {
		m.channels = append(m.channels, namedNotifier{channel: channel, notifier: notifier})
	}
	return m
}

// Notify 投递事件，返回所有失败通道的合并错误
func (m *MultiNotifier) Notify(ctx context.Context, evt Event) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, ch := range m.channels {
		if err := ch.notifier.Notify(ctx, evt); err != nil {
			metrics.NotificationsTotal.WithLabelValues(ch.channel, "failed").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", ch.channel, err))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(ch.channel, "delivered").Inc()
	}
	return errors.Join(errs...)
}

// LogNotifier 将事件写入日志
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通知器，l 为 nil 时使用全局日志
func NewLogNotifier(l *zap.Logger) *LogNotifier {
	if l == nil {
		l = logger.OrNop()
	}
	return &LogNotifier{logger: l}
}

// Notify 记录事件
func (n *LogNotifier) Notify(ctx context.Context, evt Event) error {
	logger.WithContext(ctx, n.logger).Info("合同事件",
		zap.String("type", string(evt.Type)),
		zap.String("contract_id", evt.ContractID),
		zap.String("from", evt.FromStatus),
		zap.String("to", evt.ToStatus),
		zap.String("assigned_to", evt.AssignedToID),
		zap.String("actor_id", evt.ActorID),
		zap.Strings("recipients", evt.Recipients),
	)
	return nil
}
