package workflow

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"contracthub/internal/common"
	"contracthub/internal/workflow/condition"

	"gorm.io/datatypes"
)

// WorkflowTemplate 审批流程模板
type WorkflowTemplate struct {
	ID          string         `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string         `json:"name" gorm:"size:255;not null;uniqueIndex"`
	Description string         `json:"description" gorm:"type:text"`
	CreatedByID *string        `json:"createdById,omitempty" gorm:"type:uuid"`
	Steps       []WorkflowStep `json:"steps" gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`

	common.TimestampModel
}

func (WorkflowTemplate) TableName() string {
	return "workflow_templates"
}

// OrderedSteps 按步骤序号排序后的步骤
func (t *WorkflowTemplate) OrderedSteps() []WorkflowStep {
	steps := slices.Clone(t.Steps)
	slices.SortStableFunc(steps, func(a, b WorkflowStep) int {
		return a.StepOrder - b.StepOrder
	})
	return steps
}

// ApproverType 审批人类型
type ApproverType string

const (
	ApproverUser    ApproverType = "USER"
	ApproverGroup   ApproverType = "GROUP"
	ApproverRole    ApproverType = "ROLE"
	ApproverDynamic ApproverType = "DYNAMIC"
)

// WorkflowStep 模板中的一个审批步骤
// 每个步骤只有一种审批人类型，ApproverValue 的含义由类型决定
type WorkflowStep struct {
	ID            string              `json:"id" gorm:"primaryKey;type:uuid"`
	TemplateID    string              `json:"templateId" gorm:"type:uuid;not null;uniqueIndex:idx_workflow_step_order"`
	StepOrder     int                 `json:"stepOrder" gorm:"not null;uniqueIndex:idx_workflow_step_order"`
	Name          string              `json:"name" gorm:"size:255"`
	ApproverType  ApproverType        `json:"approverType" gorm:"size:20;not null"`
	ApproverValue string              `json:"approverValue" gorm:"size:255"`
	Conditions    []ApproverCondition `json:"conditions" gorm:"foreignKey:StepID;constraint:OnDelete:CASCADE"`
}

func (WorkflowStep) TableName() string {
	return "workflow_steps"
}

// Spec 解析审批人定义
func (s *WorkflowStep) Spec() (ApproverSpec, error) {
	return ParseApproverSpec(s.ApproverType, s.ApproverValue)
}

// GatingConditions 决定步骤是否生效的条件（WHEN_TO_APPROVE 与 ADVANCED）
func (s *WorkflowStep) GatingConditions() ([]condition.Condition, error) {
	return s.conditionsOf(ConditionWhenToApprove, ConditionAdvanced)
}

// ResetConditions 触发重新发起审批的条件
func (s *WorkflowStep) ResetConditions() ([]condition.Condition, error) {
	return s.conditionsOf(ConditionResetWhen)
}

func (s *WorkflowStep) conditionsOf(types ...ConditionType) ([]condition.Condition, error) {
	ordered := slices.Clone(s.Conditions)
	slices.SortStableFunc(ordered, func(a, b ApproverCondition) int {
		return a.Position - b.Position
	})

	var out []condition.Condition
	for _, c := range ordered {
		if !slices.Contains(types, c.EffectiveType()) {
			continue
		}
		cond, err := c.Condition()
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

// ConditionType 条件用途
type ConditionType string

const (
	ConditionWhenToApprove ConditionType = "WHEN_TO_APPROVE"
	ConditionResetWhen     ConditionType = "RESET_WHEN"
	ConditionAdvanced      ConditionType = "ADVANCED"
)

// ApproverCondition 步骤条件
// Position 决定条件链的顺序，LogicalOperator 连接前一个条件
type ApproverCondition struct {
	ID              string         `json:"id" gorm:"primaryKey;type:uuid"`
	StepID          string         `json:"stepId" gorm:"type:uuid;not null;index"`
	Position        int            `json:"position" gorm:"not null"`
	Field           string         `json:"field" gorm:"size:255;not null"`
	Operator        string         `json:"operator" gorm:"size:32;not null"`
	Value           datatypes.JSON `json:"value" gorm:"type:text"`
	LogicalOperator string         `json:"logicalOperator" gorm:"size:8"`
	Type            ConditionType  `json:"type" gorm:"size:32"`
	FieldType       string         `json:"fieldType" gorm:"size:16"`
}

func (ApproverCondition) TableName() string {
	return "approver_conditions"
}

// EffectiveType 未设置时为 WHEN_TO_APPROVE
func (c *ApproverCondition) EffectiveType() ConditionType {
	if c.Type == "" {
		return ConditionWhenToApprove
	}
	return ConditionType(strings.ToUpper(string(c.Type)))
}

// Condition 转换为求值用的条件
func (c *ApproverCondition) Condition() (condition.Condition, error) {
	var value any
	if len(c.Value) > 0 {
		if err := json.Unmarshal(c.Value, &value); err != nil {
			return condition.Condition{}, common.ValidationError("条件 %s 的比较值不是合法 JSON: %v", c.Field, err)
		}
	}
	return condition.Condition{
		Field:           c.Field,
		Operator:        condition.Operator(c.Operator),
		Value:           value,
		LogicalOperator: condition.Connective(c.LogicalOperator),
		FieldType:       condition.FieldType(c.FieldType),
	}, nil
}

// SetValue 以 JSON 形式写入比较值
func (c *ApproverCondition) SetValue(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化条件值失败: %w", err)
	}
	c.Value = datatypes.JSON(raw)
	return nil
}

// Models 返回需要迁移的模板模型
func Models() []any {
	return []any{&WorkflowTemplate{}, &WorkflowStep{}, &ApproverCondition{}}
}
