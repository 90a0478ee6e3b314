package approval

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"contracthub/internal/common"
	"contracthub/internal/contract"
	"contracthub/internal/directory"
	"contracthub/internal/lock"
	"contracthub/internal/logger"
	"contracthub/internal/metrics"
	"contracthub/internal/notification"
	"contracthub/internal/workflow"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrApprovalNotFound 审批记录不存在
	ErrApprovalNotFound = common.NotFoundError(common.CodeApprovalNotFound, "")
	// ErrNotApprover 操作人不是该记录的审批人
	ErrNotApprover = common.AuthorizationError(common.CodeNotApprover, "")
	// ErrNotDecidable 审批记录已结束
	ErrNotDecidable = common.AuthorizationError(common.CodeApprovalNotDecidable, "")
)

// Engine 合同审批状态机
// 同一合同的写操作通过合同锁与行锁串行执行，事件在事务提交后发出
type Engine struct {
	db             *gorm.DB
	contracts      *contract.Store
	templates      *workflow.TemplateService
	resolver       *Resolver
	processor      *Processor
	locker         lock.Locker
	notifier       notification.Notifier
	defaultVariant Variant
	logger         *zap.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

// EngineOption 自定义配置
type EngineOption func(*Engine)

// WithNotifier 注入通知器
func WithNotifier(n notification.Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithLocker 注入合同锁
func WithLocker(l lock.Locker) EngineOption {
	return func(e *Engine) { e.locker = l }
}

// WithResolver 注入审批人解析器
func WithResolver(r *Resolver) EngineOption {
	return func(e *Engine) { e.resolver = r }
}

// WithDefaultVariant 设置默认审批变体，空值保持 approval
func WithDefaultVariant(v Variant) EngineOption {
	return func(e *Engine) {
		if v != "" {
			e.defaultVariant = v
		}
	}
}

// WithEngineLogger 注入自定义日志器
func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine 创建审批引擎
func NewEngine(db *gorm.DB, dir directory.Directory, opts ...EngineOption) *Engine {
	e := &Engine{
		db:             db,
		contracts:      contract.NewStore(db),
		templates:      workflow.NewTemplateService(db),
		locker:         lock.NewLocalLocker(),
		defaultVariant: VariantApproval,
		logger:         logger.OrNop(),
		tracer:         otel.Tracer("contracthub/internal/workflow/approval"),
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.resolver == nil {
		e.resolver = NewResolver(dir, WithResolverLogger(e.logger))
	}
	e.processor = NewProcessor(e.resolver, e.logger)
	return e
}

// InitiateInput 发起审批参数
type InitiateInput struct {
	ContractID        string
	ActorID           string
	ManualApproverIDs []string
	TemplateID        string
	Variant           string
}

// InitiateResult 发起审批结果
type InitiateResult struct {
	Contract  *contract.Contract `json:"contract"`
	Approvals []ContractApproval `json:"approvals"`
	Steps     []StepOutcome      `json:"steps"`
}

// Initiate 发起（或重新发起）合同审批
// 删除未结束的审批记录后按模板与手动审批人重新创建，已通过或驳回的历史记录保留
// 签署中或已生效的合同返回 ErrContractLocked
func (e *Engine) Initiate(ctx context.Context, in InitiateInput) (result *InitiateResult, err error) {
	ctx, span := e.tracer.Start(ctx, "ApprovalEngine.Initiate")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("contract.id", in.ContractID),
		attribute.String("template.id", in.TemplateID),
		attribute.Int("manual.count", len(in.ManualApproverIDs)),
	)
	ctx = logger.WithContractID(ctx, in.ContractID)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(common.KindOf(err))
		}
		metrics.ApprovalInitiationsTotal.WithLabelValues(outcome).Inc()
	}()

	variant, err := ParseVariant(in.Variant)
	if err != nil {
		return nil, err
	}

	var tpl *workflow.WorkflowTemplate
	if in.TemplateID != "" {
		if tpl, err = e.templates.GetTemplate(ctx, in.TemplateID); err != nil {
			return nil, err
		}
		if err = workflow.ValidateTemplate(tpl); err != nil {
			return nil, err
		}
	}

	unlock, err := e.locker.Lock(ctx, in.ContractID)
	if err != nil {
		return nil, fmt.Errorf("获取合同锁失败: %w", err)
	}
	defer unlock()

	snapshot, err := e.contracts.Get(ctx, in.ContractID)
	if err != nil {
		return nil, err
	}
	if snapshot.Locked() {
		return nil, contract.ErrContractLocked
	}
	if variant == "" {
		variant = e.defaultVariant
	}

	// 目录查询在事务外进行，合同锁保证期间没有其他审批写入
	built, err := e.processor.BuildApproverSet(ctx, tpl, snapshot.FieldValues(), snapshot.CreatedByID, in.ManualApproverIDs)
	if err != nil {
		return nil, err
	}
	manual := NewUserSet(in.ManualApproverIDs...)

	var (
		events         []notification.Event
		records        []ContractApproval
		clearedPending int64
		c              *contract.Contract
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := e.contracts.WithTx(tx)
		var err error
		if c, err = store.GetForUpdate(ctx, in.ContractID); err != nil {
			return err
		}
		if c.Locked() {
			return contract.ErrContractLocked
		}

		if err := tx.Model(&ContractApproval{}).
			Scopes(common.ByContract(c.ID), common.WithStatus(string(StatusPending))).
			Count(&clearedPending).Error; err != nil {
			return fmt.Errorf("统计待审批记录失败: %w", err)
		}
		if err := tx.Scopes(
			common.ByContract(c.ID),
			common.WithStatus(string(StatusPending), string(StatusRevisionRequested)),
		).Delete(&ContractApproval{}).Error; err != nil {
			return fmt.Errorf("清理未结束审批记录失败: %w", err)
		}

		var maxSeq int
		if err := tx.Model(&ContractApproval{}).
			Scopes(common.ByContract(c.ID)).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("查询审批序号失败: %w", err)
		}

		if err := store.StartApprovalRound(ctx, c, string(variant)); err != nil {
			return err
		}

		var templateID *string
		if tpl != nil {
			templateID = &tpl.ID
		}
		for i, approverID := range built.Approvers.IDs() {
			records = append(records, ContractApproval{
				ID:         uuid.NewString(),
				ContractID: c.ID,
				ApproverID: approverID,
				Status:     StatusPending,
				Sequence:   maxSeq + i + 1,
				Round:      c.ApprovalRound,
				TemplateID: templateID,
				Manual:     manual.Contains(approverID),
			})
		}
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("创建审批记录失败: %w", err)
		}

		events = append(events, notification.Event{
			Type:       notification.EventApprovalInitiated,
			ContractID: c.ID,
			ActorID:    in.ActorID,
			Recipients: built.Approvers.IDs(),
		})
		transition, err := e.transition(ctx, store, c, Aggregate{
			Status:     contract.StatusUnderReview,
			AssignedTo: &records[0].ApproverID,
		}, in.ActorID, "initiate")
		if err != nil {
			return err
		}
		events = append(events, transition...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApprovalPendingGauge.Add(float64(int64(len(records)) - clearedPending))
	e.emit(ctx, events)

	logger.WithContext(ctx, e.logger).Info("合同审批已发起",
		zap.Int("round", c.ApprovalRound),
		zap.Int("approvers", len(records)),
		zap.String("variant", string(variant)),
	)
	return &InitiateResult{Contract: c, Approvals: records, Steps: built.Steps}, nil
}

// DecisionInput 审批决定参数
type DecisionInput struct {
	ApprovalID string
	ActorID    string
	Decision   Decision
	Comment    string
}

// DecisionResult 审批决定结果
type DecisionResult struct {
	Approval *ContractApproval  `json:"approval"`
	Contract *contract.Contract `json:"contract"`
	Changed  bool               `json:"changed"`
}

// RecordDecision 记录审批人的决定并重新推导合同状态
// 只有记录上的审批人可以操作，且记录必须处于 PENDING 或 REVISION_REQUESTED
func (e *Engine) RecordDecision(ctx context.Context, in DecisionInput) (result *DecisionResult, err error) {
	ctx, span := e.tracer.Start(ctx, "ApprovalEngine.RecordDecision")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("approval.id", in.ApprovalID),
		attribute.String("decision", string(in.Decision)),
	)

	next, err := in.Decision.Status()
	if err != nil {
		return nil, err
	}

	existing, err := e.loadApproval(e.db.WithContext(ctx), in.ApprovalID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContractID(ctx, existing.ContractID)
	span.SetAttributes(attribute.String("contract.id", existing.ContractID))

	unlock, err := e.locker.Lock(ctx, existing.ContractID)
	if err != nil {
		return nil, fmt.Errorf("获取合同锁失败: %w", err)
	}
	defer unlock()

	var (
		events   []notification.Event
		approval *ContractApproval
		c        *contract.Contract
		changed  bool
		previous Status
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := e.contracts.WithTx(tx)
		var err error
		if c, err = store.GetForUpdate(ctx, existing.ContractID); err != nil {
			return err
		}
		if approval, err = e.loadApproval(tx.Clauses(clause.Locking{Strength: "UPDATE"}), in.ApprovalID); err != nil {
			return err
		}
		if approval.ApproverID != in.ActorID {
			return ErrNotApprover
		}
		if !approval.Status.Decidable() {
			return ErrNotDecidable
		}

		previous = approval.Status
		decidedAt := e.now()
		if err := tx.Model(&ContractApproval{}).
			Where("id = ?", approval.ID).
			Updates(map[string]any{
				"status":      next,
				"comment":     in.Comment,
				"approved_at": decidedAt,
			}).Error; err != nil {
			return fmt.Errorf("更新审批记录失败: %w", err)
		}
		approval.Status = next
		approval.Comment = in.Comment
		approval.ApprovedAt = &decidedAt

		events = append(events, notification.Event{
			Type:       notification.EventApprovalDecided,
			ContractID: c.ID,
			ApprovalID: approval.ID,
			ActorID:    in.ActorID,
			ToStatus:   string(next),
			Comment:    in.Comment,
		})

		transition, err := e.recompute(ctx, tx, store, c, in.ActorID, "decision")
		if err != nil {
			return err
		}
		changed = len(transition) > 0
		events = append(events, transition...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApprovalDecisionsTotal.WithLabelValues(string(next)).Inc()
	if previous == StatusPending {
		metrics.ApprovalPendingGauge.Dec()
	}
	e.emit(ctx, events)

	logger.WithContext(ctx, e.logger).Info("审批决定已记录",
		zap.String("approval_id", approval.ID),
		zap.String("decision", string(next)),
		zap.String("contract_status", string(c.Status)),
	)
	return &DecisionResult{Approval: approval, Contract: c, Changed: changed}, nil
}

// RecomputeResult 重新推导结果
type RecomputeResult struct {
	Contract *contract.Contract `json:"contract"`
	Changed  bool               `json:"changed"`
}

// Recompute 按当前审批记录重新推导合同状态，状态未变化时不写入也不发事件
func (e *Engine) Recompute(ctx context.Context, contractID, actorID string) (result *RecomputeResult, err error) {
	ctx, span := e.tracer.Start(ctx, "ApprovalEngine.Recompute")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("contract.id", contractID))
	ctx = logger.WithContractID(ctx, contractID)

	unlock, err := e.locker.Lock(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("获取合同锁失败: %w", err)
	}
	defer unlock()

	var (
		events []notification.Event
		c      *contract.Contract
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := e.contracts.WithTx(tx)
		var err error
		if c, err = store.GetForUpdate(ctx, contractID); err != nil {
			return err
		}
		events, err = e.recompute(ctx, tx, store, c, actorID, "recompute")
		return err
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, events)
	return &RecomputeResult{Contract: c, Changed: len(events) > 0}, nil
}

// ListApprovals 按创建顺序列出合同的全部审批记录（含历史轮次）
func (e *Engine) ListApprovals(ctx context.Context, contractID string) ([]ContractApproval, error) {
	if _, err := e.contracts.Get(ctx, contractID); err != nil {
		return nil, err
	}
	var records []ContractApproval
	if err := e.db.WithContext(ctx).
		Scopes(common.ByContract(contractID), common.CreationOrder()).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询审批记录失败: %w", err)
	}
	return records, nil
}

// CountPending 统计全部合同的待审批记录数
func (e *Engine) CountPending(ctx context.Context) (int64, error) {
	var n int64
	if err := e.db.WithContext(ctx).Model(&ContractApproval{}).
		Scopes(common.WithStatus(string(StatusPending))).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计待审批记录失败: %w", err)
	}
	return n, nil
}

// ReinitiateIfReset 当前一轮所用模板的 RESET_WHEN 条件成立时重新发起审批
// 沿用上一轮的模板、变体与手动审批人
// 只处理审批中、退回修改或已驳回的合同，其余状态与没有模板审批时不做任何操作
func (e *Engine) ReinitiateIfReset(ctx context.Context, contractID, actorID string) (*InitiateResult, bool, error) {
	c, err := e.contracts.Get(ctx, contractID)
	if err != nil {
		return nil, false, err
	}
	if c.ApprovalRound == 0 || !resettable(c.Status) {
		return nil, false, nil
	}

	var current []ContractApproval
	if err := e.db.WithContext(ctx).
		Scopes(common.ByContract(contractID), common.CreationOrder()).
		Where("round = ?", c.ApprovalRound).
		Find(&current).Error; err != nil {
		return nil, false, fmt.Errorf("查询审批记录失败: %w", err)
	}

	var templateID string
	manual := NewUserSet()
	for _, r := range current {
		if r.TemplateID != nil && templateID == "" {
			templateID = *r.TemplateID
		}
		if r.Manual {
			manual.Add(r.ApproverID)
		}
	}
	if templateID == "" {
		return nil, false, nil
	}

	tpl, err := e.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, false, err
	}
	triggered, err := e.processor.ResetTriggered(tpl, c.FieldValues())
	if err != nil || !triggered {
		return nil, false, err
	}

	result, err := e.Initiate(ctx, InitiateInput{
		ContractID:        contractID,
		ActorID:           actorID,
		ManualApproverIDs: manual.IDs(),
		TemplateID:        templateID,
		Variant:           c.ApprovalVariant,
	})
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// recompute 在事务内推导并写入合同状态，返回需要发出的事件
// 只汇总当前轮次的审批记录，历史轮次的驳回不影响重新发起后的结果
func (e *Engine) recompute(ctx context.Context, tx *gorm.DB, store *contract.Store, c *contract.Contract, actorID, reason string) ([]notification.Event, error) {
	if c.ApprovalRound == 0 {
		return nil, nil
	}
	variant, err := ParseVariant(c.ApprovalVariant)
	if err != nil || variant == "" {
		variant = e.defaultVariant
	}
	if !ownsStatus(c.Status, variant) {
		return nil, nil
	}

	var records []ContractApproval
	if err := tx.Scopes(common.ByContract(c.ID), common.CreationOrder()).
		Where("round = ?", c.ApprovalRound).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询审批记录失败: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	agg := DeriveAggregate(records, c.CreatedByID, variant.ApprovedStatus())
	// 已到达通过状态后处理人由签署流程维护
	if agg.Status == c.Status && c.Status == variant.ApprovedStatus() {
		return nil, nil
	}
	return e.transition(ctx, store, c, agg, actorID, reason)
}

// transition 写入合同状态，只有实际变化时才产生事件
func (e *Engine) transition(ctx context.Context, store *contract.Store, c *contract.Contract, agg Aggregate, actorID, reason string) ([]notification.Event, error) {
	from := c.Status
	changed, err := store.Apply(ctx, c, contract.Transition{
		To:         agg.Status,
		AssignedTo: agg.AssignedTo,
		ActorID:    actorID,
		Reason:     reason,
	})
	if err != nil || !changed {
		return nil, err
	}

	evt := notification.Event{
		Type:         notification.EventContractStatusChanged,
		ContractID:   c.ID,
		ActorID:      actorID,
		FromStatus:   string(from),
		ToStatus:     string(agg.Status),
		AssignedToID: common.StringValue(agg.AssignedTo),
	}
	if from == agg.Status {
		evt.Type = notification.EventContractAssigned
	}
	if agg.AssignedTo != nil {
		evt.Recipients = []string{*agg.AssignedTo}
	}
	return []notification.Event{evt}, nil
}

// ownsStatus 合同是否处于审批流程负责的状态，签署阶段及之后的状态不受审批推导影响
func ownsStatus(s contract.Status, variant Variant) bool {
	owned := []contract.Status{
		contract.StatusUnderReview,
		contract.StatusRevisionRequested,
		contract.StatusRejected,
		variant.ApprovedStatus(),
	}
	return slices.Contains(owned, s)
}

func resettable(s contract.Status) bool {
	switch s {
	case contract.StatusUnderReview, contract.StatusRevisionRequested, contract.StatusRejected:
		return true
	}
	return false
}

func (e *Engine) loadApproval(db *gorm.DB, approvalID string) (*ContractApproval, error) {
	var approval ContractApproval
	if err := db.Where("id = ?", approvalID).First(&approval).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApprovalNotFound
		}
		return nil, fmt.Errorf("查询审批记录失败: %w", err)
	}
	return &approval, nil
}

// emit 发出事件，通知失败只记录日志
func (e *Engine) emit(ctx context.Context, events []notification.Event) {
	if e.notifier == nil {
		return
	}
	now := e.now()
	for _, evt := range events {
		if evt.OccurredAt.IsZero() {
			evt.OccurredAt = now
		}
		if err := e.notifier.Notify(ctx, evt); err != nil {
			logger.WithContext(ctx, e.logger).Warn("发送合同事件失败",
				zap.String("type", string(evt.Type)),
				zap.Error(err),
			)
		}
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
