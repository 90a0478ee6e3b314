package tasks

// Task Types
const (
	TypeContractEvent = "contract:event"
)

// ContractEventPayload 合同事件投递任务载荷
type ContractEventPayload struct {
	Type         string   `json:"type"`
	ContractID   string   `json:"contract_id"`
	ApprovalID   string   `json:"approval_id,omitempty"`
	PackageID    string   `json:"package_id,omitempty"`
	SignatureID  string   `json:"signature_id,omitempty"`
	ActorID      string   `json:"actor_id,omitempty"`
	FromStatus   string   `json:"from_status,omitempty"`
	ToStatus     string   `json:"to_status,omitempty"`
	AssignedToID string   `json:"assigned_to_id,omitempty"`
	Recipients   []string `json:"recipients,omitempty"`
	Comment      string   `json:"comment,omitempty"`
	OccurredAt   int64    `json:"occurred_at"`
}
