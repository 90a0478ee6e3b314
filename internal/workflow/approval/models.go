package approval

import (
	"strings"
	"time"

	"contracthub/internal/common"
	"contracthub/internal/contract"
)

// Status 单个审批人的审批状态
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusApproved          Status = "APPROVED"
	StatusRejected          Status = "REJECTED"
	StatusRevisionRequested Status = "REVISION_REQUESTED"
)

// Decidable 是否还可以做出审批决定
func (s Status) Decidable() bool {
	return s == StatusPending || s == StatusRevisionRequested
}

// Decision 审批决定
type Decision string

const (
	DecisionApprove         Decision = "APPROVE"
	DecisionReject          Decision = "REJECT"
	DecisionRequestRevision Decision = "REQUEST_REVISION"
)

// Status 决定对应的审批状态
func (d Decision) Status() (Status, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(string(d)))) {
	case DecisionApprove:
		return StatusApproved, nil
	case DecisionReject:
		return StatusRejected, nil
	case DecisionRequestRevision:
		return StatusRevisionRequested, nil
	}
	return "", common.ValidationError("未知的审批决定: %s", d)
}

// Variant 全部通过后合同进入的终态
type Variant string

const (
	VariantApproval Variant = "approval"
	VariantSignoff  Variant = "signoff"
)

// ParseVariant 解析审批变体，空值返回空变体
func ParseVariant(raw string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(raw))); v {
	case "", VariantApproval, VariantSignoff:
		return v, nil
	}
	return "", common.ValidationError("未知的审批变体: %s", raw)
}

// ApprovedStatus 全部通过后的合同状态
func (v Variant) ApprovedStatus() contract.Status {
	if v == VariantSignoff {
		return contract.StatusSigning
	}
	return contract.StatusApproved
}

// ContractApproval 单个审批人对合同的审批记录
// Sequence 为创建顺序，Round 为发起轮次，Manual 表示由发起人手动指定
type ContractApproval struct {
	ID         string     `json:"id" gorm:"primaryKey;type:uuid"`
	ContractID string     `json:"contractId" gorm:"type:uuid;not null;index"`
	ApproverID string     `json:"approverId" gorm:"type:uuid;not null;index"`
	Status     Status     `json:"status" gorm:"size:32;not null;index"`
	Comment    string     `json:"comment,omitempty" gorm:"type:text"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	Sequence   int        `json:"sequence" gorm:"not null"`
	Round      int        `json:"round" gorm:"not null;index"`
	TemplateID *string    `json:"templateId,omitempty" gorm:"type:uuid"`
	Manual     bool       `json:"manual" gorm:"not null"`

	common.TimestampModel
}

func (ContractApproval) TableName() string {
	return "contract_approvals"
}

// Models 返回需要迁移的审批模型
func Models() []any {
	return []any{&ContractApproval{}}
}
