package notification

import (
	"context"
	"time"

	"contracthub/internal/infra/queue"
	"contracthub/internal/worker/tasks"
)

// QueueNotifier 将事件投递到异步任务队列，由 worker 完成外部通知
type QueueNotifier struct {
	client queue.Client
}

// NewQueueNotifier 创建队列通知器
func NewQueueNotifier(client queue.Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

// Notify 投递事件
func (n *QueueNotifier) Notify(ctx context.Context, evt Event) error {
	return n.client.EnqueueContractEvent(ctx, ToPayload(evt))
}

// ToPayload 事件转换为任务载荷
func ToPayload(evt Event) tasks.ContractEventPayload {
	return tasks.ContractEventPayload{
		Type:         string(evt.Type),
		ContractID:   evt.ContractID,
		ApprovalID:   evt.ApprovalID,
		PackageID:    evt.PackageID,
		SignatureID:  evt.SignatureID,
		ActorID:      evt.ActorID,
		FromStatus:   evt.FromStatus,
		ToStatus:     evt.ToStatus,
		AssignedToID: evt.AssignedToID,
		Recipients:   evt.Recipients,
		Comment:      evt.Comment,
		OccurredAt:   evt.OccurredAt.UnixMilli(),
	}
}

// FromPayload 任务载荷还原为事件
func FromPayload(p tasks.ContractEventPayload) Event {
	return Event{
		Type:         EventType(p.Type),
		ContractID:   p.ContractID,
		ApprovalID:   p.ApprovalID,
		PackageID:    p.PackageID,
		SignatureID:  p.SignatureID,
		ActorID:      p.ActorID,
		FromStatus:   p.FromStatus,
		ToStatus:     p.ToStatus,
		AssignedToID: p.AssignedToID,
		Recipients:   p.Recipients,
		Comment:      p.Comment,
		OccurredAt:   time.UnixMilli(p.OccurredAt).UTC(),
	}
}
