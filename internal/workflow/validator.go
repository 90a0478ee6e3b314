package workflow

import (
	"fmt"
	"strings"

	"contracthub/internal/common"
	"contracthub/internal/workflow/condition"
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate 校验模板定义，返回全部错误
func Validate(tpl *WorkflowTemplate) []FieldError {
	errs := []FieldError{}

	if strings.TrimSpace(tpl.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "模板名称不能为空"})
	}
	if len(tpl.Steps) == 0 {
		errs = append(errs, FieldError{Field: "steps", Message: "至少需要一个步骤"})
		return errs
	}

	orders := make(map[int]bool, len(tpl.Steps))
	for i := range tpl.Steps {
		step := &tpl.Steps[i]
		prefix := fmt.Sprintf("steps[%d]", i)

		if orders[step.StepOrder] {
			errs = append(errs, FieldError{
				Field:   prefix + ".stepOrder",
				Message: fmt.Sprintf("重复的步骤序号: %d", step.StepOrder),
			})
		}
		orders[step.StepOrder] = true

		if _, err := step.Spec(); err != nil {
			errs = append(errs, FieldError{Field: prefix + ".approver", Message: messageOf(err)})
		}

		positions := make(map[int]bool, len(step.Conditions))
		for j := range step.Conditions {
			c := &step.Conditions[j]
			field := fmt.Sprintf("%s.conditions[%d]", prefix, j)
			if positions[c.Position] {
				errs = append(errs, FieldError{Field: field + ".position", Message: fmt.Sprintf("重复的条件位置: %d", c.Position)})
			}
			positions[c.Position] = true

			switch c.EffectiveType() {
			case ConditionWhenToApprove, ConditionResetWhen, ConditionAdvanced:
			default:
				errs = append(errs, FieldError{Field: field + ".type", Message: fmt.Sprintf("未知的条件类型: %s", c.Type)})
				continue
			}
			cond, err := c.Condition()
			if err != nil {
				errs = append(errs, FieldError{Field: field + ".value", Message: messageOf(err)})
				continue
			}
			if err := condition.Validate([]condition.Condition{cond}); err != nil {
				errs = append(errs, FieldError{Field: field, Message: messageOf(err)})
			}
		}
	}
	return errs
}

// ValidateTemplate 校验模板定义，有错误时返回 ValidationError
func ValidateTemplate(tpl *WorkflowTemplate) error {
	errs := Validate(tpl)
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return common.ValidationError("模板校验失败: %s", strings.Join(parts, "; "))
}

func messageOf(err error) string {
	if be, ok := err.(*common.BusinessError); ok {
		return be.Message
	}
	return err.Error()
}
