package contract

import (
	"time"

	"contracthub/internal/common"

	"gorm.io/datatypes"
)

// Status 合同状态
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusUnderReview       Status = "UNDER_REVIEW"
	StatusRevisionRequested Status = "REVISION_REQUESTED"
	StatusApproved          Status = "APPROVED"
	StatusRejected          Status = "REJECTED"
	StatusSigning           Status = "SIGNING"
	StatusActive            Status = "ACTIVE"
)

// Valid 是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusUnderReview, StatusRevisionRequested,
		StatusApproved, StatusRejected, StatusSigning, StatusActive:
		return true
	}
	return false
}

// Contract 审批与签署的主体
type Contract struct {
	ID              string            `json:"id" gorm:"primaryKey;type:uuid"`
	Title           string            `json:"title" gorm:"size:500;not null"`
	Status          Status            `json:"status" gorm:"size:32;not null;index"`
	AssignedToID    *string           `json:"assignedToId,omitempty" gorm:"type:uuid;index"`
	CreatedByID     string            `json:"createdById" gorm:"type:uuid;not null;index"`
	Fields          datatypes.JSONMap `json:"fields"`
	ApprovalRound   int               `json:"approvalRound" gorm:"not null"`
	ApprovalVariant string            `json:"approvalVariant,omitempty" gorm:"size:32"`

	common.TimestampModel
}

func (Contract) TableName() string {
	return "contracts"
}

// Locked 签署中或已生效
func (c *Contract) Locked() bool {
	return c.Status == StatusSigning || c.Status == StatusActive
}

// FieldValues 返回合同字段快照
// 返回的是副本，调用方修改不会影响合同本身
func (c *Contract) FieldValues() map[string]any {
	out := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		out[k] = v
	}
	return out
}

// StatusChange 合同状态变更记录
type StatusChange struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	ContractID   string    `json:"contractId" gorm:"type:uuid;not null;index"`
	FromStatus   Status    `json:"fromStatus" gorm:"size:32;not null"`
	ToStatus     Status    `json:"toStatus" gorm:"size:32;not null"`
	AssignedToID *string   `json:"assignedToId,omitempty" gorm:"type:uuid"`
	ActorID      *string   `json:"actorId,omitempty" gorm:"type:uuid"`
	Reason       string    `json:"reason,omitempty" gorm:"size:100"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
}

func (StatusChange) TableName() string {
	return "contract_status_changes"
}

// Models 返回需要迁移的合同模型
func Models() []any {
	return []any{&Contract{}, &StatusChange{}}
}
