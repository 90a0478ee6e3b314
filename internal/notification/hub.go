package notification

import (
	"context"
	"time"

	"contracthub/internal/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Streamer 将合同事件推送到 WebSocket 连接
type Streamer struct {
	bus               *EventBus
	keepAliveInterval time.Duration
	writeTimeout      time.Duration
	logger            *zap.Logger
}

// StreamerOption 配置 Streamer
type StreamerOption func(*Streamer)

// WithKeepAliveInterval 设置心跳间隔
func WithKeepAliveInterval(interval time.Duration) StreamerOption {
	return func(s *Streamer) { s.keepAliveInterval = interval }
}

// WithStreamerLogger 设置日志器
func WithStreamerLogger(l *zap.Logger) StreamerOption {
	return func(s *Streamer) { s.logger = l }
}

// NewStreamer 创建 Streamer
func NewStreamer(bus *EventBus, opts ...StreamerOption) *Streamer {
	s := &Streamer{
		bus:               bus,
		keepAliveInterval: 30 * time.Second,
		writeTimeout:      5 * time.Second,
		logger:            logger.OrNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Serve 推送指定合同的事件，直到连接关闭或 ctx 结束
func (s *Streamer) Serve(ctx context.Context, conn *websocket.Conn, contractID string) error {
	events, cancel := s.bus.Subscribe(contractID)
	defer cancel()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// 读循环只用于感知客户端断开
	go func() {
		defer stop()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	var ticks <-chan time.Time
	if s.keepAliveInterval > 0 {
		ticker := time.NewTicker(s.keepAliveInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.writeTimeout))
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				s.logger.Debug("推送合同事件失败", zap.String("contract_id", contractID), zap.Error(err))
				return err
			}
		case <-ticks:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				return err
			}
		}
	}
}
