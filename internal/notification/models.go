package notification

import "time"

// EventType 事件类型
type EventType string

const (
	EventApprovalInitiated       EventType = "approval.initiated"
	EventApprovalDecided         EventType = "approval.decided"
	EventContractStatusChanged   EventType = "contract.status_changed"
	EventContractAssigned        EventType = "contract.assigned"
	EventSignaturePackageCreated EventType = "signature.package_created"
	EventSignatureSigned         EventType = "signature.signed"
	EventSignatureDeclined       EventType = "signature.declined"
	EventSignatureCancelled      EventType = "signature.cancelled"
	EventSignaturePackageClosed  EventType = "signature.package_closed"
)

// Event 合同状态变化事件
// 只在状态实际发生变化并提交后发出
type Event struct {
	Type         EventType `json:"type"`
	ContractID   string    `json:"contractId"`
	ApprovalID   string    `json:"approvalId,omitempty"`
	PackageID    string    `json:"packageId,omitempty"`
	SignatureID  string    `json:"signatureId,omitempty"`
	ActorID      string    `json:"actorId,omitempty"`
	FromStatus   string    `json:"fromStatus,omitempty"`
	ToStatus     string    `json:"toStatus,omitempty"`
	AssignedToID string    `json:"assignedToId,omitempty"`
	Recipients   []string  `json:"recipients,omitempty"`
	Comment      string    `json:"comment,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}
