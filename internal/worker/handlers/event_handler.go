package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"contracthub/internal/notification"
	"contracthub/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// EventHandler 消费合同事件任务并交给下游通知器
type EventHandler struct {
	notifier notification.Notifier
	logger   *zap.Logger
}

func NewEventHandler(notifier notification.Notifier, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		notifier: notifier,
		logger:   logger,
	}
}

func (h *EventHandler) HandleContractEvent(ctx context.Context, t *asynq.Task) error {
	var p tasks.ContractEventPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w: %w", err, asynq.SkipRetry)
	}

	if err := h.notifier.Notify(ctx, notification.FromPayload(p)); err != nil {
		h.logger.Error("合同事件投递失败",
			zap.String("type", p.Type),
			zap.String("contract_id", p.ContractID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Debug("合同事件投递完成",
		zap.String("type", p.Type),
		zap.String("contract_id", p.ContractID),
	)
	return nil
}
