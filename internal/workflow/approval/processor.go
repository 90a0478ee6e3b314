package approval

import (
	"context"

	"contracthub/internal/common"
	"contracthub/internal/logger"
	"contracthub/internal/metrics"
	"contracthub/internal/workflow"
	"contracthub/internal/workflow/condition"

	"go.uber.org/zap"
)

// StepOutcome 单个步骤的处理结果
type StepOutcome struct {
	StepOrder   int      `json:"stepOrder"`
	StepName    string   `json:"stepName,omitempty"`
	Approver    string   `json:"approver"`
	Included    bool     `json:"included"`
	Conditions  string   `json:"conditions"`
	Contributed []string `json:"contributed,omitempty"`
}

// BuildResult 审批人集合及各步骤的处理明细
type BuildResult struct {
	Approvers *UserSet
	Steps     []StepOutcome
}

// Processor 按模板步骤计算合同所需的审批人
type Processor struct {
	resolver *Resolver
	logger   *zap.Logger
}

// NewProcessor 创建模板处理器
func NewProcessor(resolver *Resolver, l *zap.Logger) *Processor {
	if l == nil {
		l = logger.OrNop()
	}
	return &Processor{resolver: resolver, logger: l}
}

// BuildApproverSet 计算审批人集合
// fields 为合同字段快照，所有步骤使用同一份快照；tpl 为 nil 时只使用手动指定的审批人。
// 最终集合为空时返回 BusinessLogicError
func (p *Processor) BuildApproverSet(
	ctx context.Context,
	tpl *workflow.WorkflowTemplate,
	fields map[string]any,
	initiatorID string,
	manualApproverIDs []string,
) (*BuildResult, error) {
	result := &BuildResult{Approvers: NewUserSet()}
	log := logger.WithContext(ctx, p.logger)

	if tpl != nil {
		for _, step := range tpl.OrderedSteps() {
			spec, err := step.Spec()
			if err != nil {
				return nil, err
			}
			conds, err := step.GatingConditions()
			if err != nil {
				return nil, err
			}

			outcome := StepOutcome{
				StepOrder:  step.StepOrder,
				StepName:   step.Name,
				Approver:   spec.String(),
				Conditions: condition.Explain(conds),
			}
			included, err := condition.Evaluate(conds, fields)
			if err != nil {
				return nil, err
			}
			outcome.Included = included
			if included {
				resolved := p.resolver.Resolve(ctx, spec, initiatorID)
				outcome.Contributed = resolved.IDs()
				result.Approvers.Union(resolved)
			}
			result.Steps = append(result.Steps, outcome)

			log.Debug("审批步骤处理完成",
				zap.Int("step_order", outcome.StepOrder),
				zap.String("approver", outcome.Approver),
				zap.Bool("included", outcome.Included),
				zap.String("conditions", outcome.Conditions),
				zap.Int("contributed", len(outcome.Contributed)),
			)
		}
	}

	result.Approvers.Add(manualApproverIDs...)

	if result.Approvers.Len() == 0 {
		return nil, common.BusinessLogicError(common.CodeNoApproverFound, "")
	}
	metrics.ApproverSetSize.Observe(float64(result.Approvers.Len()))
	return result, nil
}

// ResetTriggered 任一步骤的 RESET_WHEN 条件成立时返回 true
// 没有配置 RESET_WHEN 条件的步骤不参与判断
func (p *Processor) ResetTriggered(tpl *workflow.WorkflowTemplate, fields map[string]any) (bool, error) {
	if tpl == nil {
		return false, nil
	}
	for _, step := range tpl.OrderedSteps() {
		conds, err := step.ResetConditions()
		if err != nil {
			return false, err
		}
		if len(conds) == 0 {
			continue
		}
		matched, err := condition.Evaluate(conds, fields)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
