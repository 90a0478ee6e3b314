package signature

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
	ErrPackageNotFound   = common.NotFoundError(common.CodePackageNotFound, "")
	ErrSignatureNotFound = common.NotFoundError(common.CodeSignatureNotFound, "")
	ErrPackageExists     = common.BusinessLogicError(common.CodePackageExists, "")
	ErrContractNotReady  = common.BusinessLogicError(common.CodeContractNotApproved, "")
	ErrSignatureExpired  = common.BusinessLogicError(common.CodeSignatureExpired, "")
	ErrSignatureClosed   = common.BusinessLogicError(common.CodeSignatureClosed, "")
	ErrNotSigner         = common.AuthorizationError(common.CodeNotSigner, "")
	ErrCancelForbidden   = common.AuthorizationError(common.CodeCancelForbidden, "")
	ErrCreateForbidden   = common.AuthorizationError(common.CodeForbidden, "仅合同创建人或管理员可以发起签署")
)

// Tracker 签署完成跟踪器
// 与审批引擎共用合同锁，同一合同的签署操作串行执行
type Tracker struct {
	db            *gorm.DB
	contracts     *contract.Store
	dir           directory.Directory
	locker        lock.Locker
	notifier      notification.Notifier
	defaultExpiry time.Duration
	logger        *zap.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// Option 自定义配置
type Option func(*Tracker)

// WithNotifier 注入通知器
func WithNotifier(n notification.Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithLocker 注入合同锁，应与审批引擎使用同一个实例
func WithLocker(l lock.Locker) Option {
	return func(t *Tracker) { t.locker = l }
}

// WithDefaultExpiry 未指定过期时间的签署使用的有效期，0 表示不过期
func WithDefaultExpiry(d time.Duration) Option {
	return func(t *Tracker) { t.defaultExpiry = d }
}

// WithLogger 注入自定义日志器
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker 创建签署跟踪器
func NewTracker(db *gorm.DB, dir directory.Directory, opts ...Option) *Tracker {
	t := &Tracker{
		db:        db,
		contracts: contract.NewStore(db),
		dir:       dir,
		locker:    lock.NewLocalLocker(),
		logger:    logger.OrNop(),
		tracer:    otel.Tracer("contracthub/internal/signature"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// SignerInput 签署人
// Optional 为 true 时该签署人可以跳过，ExpiresAt 为空时使用默认有效期
type SignerInput struct {
	UserID    string     `json:"userId" binding:"required"`
	Optional  bool       `json:"optional"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// CreatePackageInput 创建签署包参数
type CreatePackageInput struct {
	ContractID string
	ActorID    string
	Signers    []SignerInput
}

// CreatePackage 为已通过审批的合同创建签署包，合同进入 SIGNING
// 仅合同创建人或管理员可以操作
func (t *Tracker) CreatePackage(ctx context.Context, in CreatePackageInput) (pkg *SignaturePackage, err error) {
	ctx, span := t.tracer.Start(ctx, "SignatureTracker.CreatePackage")
	defer func() { t.finish(span, "create", err) }()
	span.SetAttributes(
		attribute.String("contract.id", in.ContractID),
		attribute.Int("signers", len(in.Signers)),
	)
	ctx = logger.WithContractID(ctx, in.ContractID)

	if err = t.validateSigners(ctx, in.Signers); err != nil {
		return nil, err
	}

	unlock, err := t.locker.Lock(ctx, in.ContractID)
	if err != nil {
		return nil, fmt.Errorf("获取合同锁失败: %w", err)
	}
	defer unlock()

	snapshot, err := t.contracts.Get(ctx, in.ContractID)
	if err != nil {
		return nil, err
	}
	if err = t.authorizeOwner(ctx, snapshot, in.ActorID, ErrCreateForbidden); err != nil {
		return nil, err
	}

	var events []notification.Event
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := t.contracts.WithTx(tx)
		c, err := store.GetForUpdate(ctx, in.ContractID)
		if err != nil {
			return err
		}
		if c.Status != contract.StatusApproved && c.Status != contract.StatusSigning {
			return ErrContractNotReady
		}

		var existing int64
		if err := tx.Model(&SignaturePackage{}).Scopes(common.ByContract(c.ID)).Count(&existing).Error; err != nil {
			return fmt.Errorf("查询签署包失败: %w", err)
		}
		if existing > 0 {
			return ErrPackageExists
		}

		now := t.now()
		pkg = &SignaturePackage{
			ID:          uuid.NewString(),
			ContractID:  c.ID,
			Status:      PackagePending,
			CreatedByID: in.ActorID,
		}
		for i, s := range in.Signers {
			expiresAt := s.ExpiresAt
			if expiresAt == nil && t.defaultExpiry > 0 {
				at := now.Add(t.defaultExpiry)
				expiresAt = &at
			}
			pkg.Signatures = append(pkg.Signatures, DigitalSignature{
				ID:         uuid.NewString(),
				PackageID:  pkg.ID,
				ContractID: c.ID,
				UserID:     s.UserID,
				Status:     StatusPending,
				Required:   !s.Optional,
				ExpiresAt:  expiresAt,
				Sequence:   i + 1,
			})
		}
		if err := tx.Create(pkg).Error; err != nil {
			return fmt.Errorf("创建签署包失败: %w", err)
		}

		signers := make([]string, 0, len(pkg.Signatures))
		for _, s := range pkg.Signatures {
			signers = append(signers, s.UserID)
		}
		events = append(events, notification.Event{
			Type:       notification.EventSignaturePackageCreated,
			ContractID: c.ID,
			PackageID:  pkg.ID,
			ActorID:    in.ActorID,
			Recipients: signers,
		})

		transition, err := t.transition(ctx, store, c, contract.StatusSigning, &pkg.Signatures[0].UserID, in.ActorID, "signature_package")
		if err != nil {
			return err
		}
		events = append(events, transition...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.emit(ctx, events)
	logger.WithContext(ctx, t.logger).Info("签署包已创建",
		zap.String("package_id", pkg.ID),
		zap.Int("signers", len(pkg.Signatures)),
	)
	return pkg, nil
}

// ActionInput 签署操作参数
type ActionInput struct {
	SignatureID string
	ActorID     string
	Reason      string
}

// ActionResult 签署操作结果
type ActionResult struct {
	Signature *DigitalSignature  `json:"signature"`
	Package   *SignaturePackage  `json:"package"`
	Contract  *contract.Contract `json:"contract"`
}

// Sign 签署人签署，已过期的签署返回错误且状态不变
func (t *Tracker) Sign(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return t.act(ctx, "sign", in, func(sig *DigitalSignature, now time.Time) (map[string]any, error) {
		if sig.UserID != in.ActorID {
			return nil, ErrNotSigner
		}
		if sig.Expired(now) {
			return nil, ErrSignatureExpired
		}
		sig.Status = StatusSigned
		sig.SignedAt = &now
		return map[string]any{"status": StatusSigned, "signed_at": now}, nil
	})
}

// Decline 签署人拒签
func (t *Tracker) Decline(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return t.act(ctx, "decline", in, func(sig *DigitalSignature, now time.Time) (map[string]any, error) {
		if sig.UserID != in.ActorID {
			return nil, ErrNotSigner
		}
		sig.Status = StatusDeclined
		sig.DeclinedAt = &now
		sig.Reason = in.Reason
		return map[string]any{"status": StatusDeclined, "declined_at": now, "reason": in.Reason}, nil
	})
}

// Cancel 取消某个签署人的签署，仅合同创建人或管理员可以操作
func (t *Tracker) Cancel(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return t.act(ctx, "cancel", in, func(sig *DigitalSignature, now time.Time) (map[string]any, error) {
		sig.Status = StatusCancelled
		sig.CancelledAt = &now
		sig.Reason = in.Reason
		return map[string]any{"status": StatusCancelled, "cancelled_at": now, "reason": in.Reason}, nil
	})
}

// GetPackage 查询合同的签署包及签署记录
func (t *Tracker) GetPackage(ctx context.Context, contractID string) (*SignaturePackage, error) {
	return t.loadPackage(t.db.WithContext(ctx), contractID)
}

// mutation 在签署记录上执行操作，返回需要写入的列
type mutation func(sig *DigitalSignature, now time.Time) (map[string]any, error)

func (t *Tracker) act(ctx context.Context, action string, in ActionInput, apply mutation) (result *ActionResult, err error) {
	ctx, span := t.tracer.Start(ctx, "SignatureTracker."+action)
	defer func() { t.finish(span, action, err) }()
	span.SetAttributes(attribute.String("signature.id", in.SignatureID))

	existing, err := t.loadSignature(t.db.WithContext(ctx), in.SignatureID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContractID(ctx, existing.ContractID)
	span.SetAttributes(attribute.String("contract.id", existing.ContractID))

	if action == "cancel" {
		snapshot, err := t.contracts.Get(ctx, existing.ContractID)
		if err != nil {
			return nil, err
		}
		if err := t.authorizeOwner(ctx, snapshot, in.ActorID, ErrCancelForbidden); err != nil {
			return nil, err
		}
	}

	unlock, err := t.locker.Lock(ctx, existing.ContractID)
	if err != nil {
		return nil, fmt.Errorf("获取合同锁失败: %w", err)
	}
	defer unlock()

	var events []notification.Event
	result = &ActionResult{}
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := t.contracts.WithTx(tx)
		c, err := store.GetForUpdate(ctx, existing.ContractID)
		if err != nil {
			return err
		}
		sig, err := t.loadSignature(tx.Clauses(clause.Locking{Strength: "UPDATE"}), in.SignatureID)
		if err != nil {
			return err
		}
		pkg, err := t.loadPackage(tx, c.ID)
		if err != nil {
			return err
		}
		if pkg.Status != PackagePending || sig.Status != StatusPending {
			return ErrSignatureClosed
		}

		now := t.now()
		columns, err := apply(sig, now)
		if err != nil {
			return err
		}
		if err := tx.Model(&DigitalSignature{}).Where("id = ?", sig.ID).Updates(columns).Error; err != nil {
			return fmt.Errorf("更新签署记录失败: %w", err)
		}
		for i := range pkg.Signatures {
			if pkg.Signatures[i].ID == sig.ID {
				pkg.Signatures[i] = *sig
			}
		}

		events = append(events, notification.Event{
			Type:        actionEvent(action),
			ContractID:  c.ID,
			PackageID:   pkg.ID,
			SignatureID: sig.ID,
			ActorID:     in.ActorID,
			ToStatus:    string(sig.Status),
			Comment:     in.Reason,
			Recipients:  []string{c.CreatedByID},
		})

		settled, err := t.settle(ctx, tx, store, pkg, c, in.ActorID, now)
		if err != nil {
			return err
		}
		events = append(events, settled...)

		result.Signature, result.Package, result.Contract = sig, pkg, c
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.emit(ctx, events)
	logger.WithContext(ctx, t.logger).Info("签署操作已记录",
		zap.String("action", action),
		zap.String("signature_id", in.SignatureID),
		zap.String("package_status", string(result.Package.Status)),
	)
	return result, nil
}

// settle 重新推导签署包状态并同步合同状态
//   - 完成：签署包 COMPLETED，合同 ACTIVE 并交还创建人
//   - 必签人拒签或被取消：签署包 DECLINED，合同交还创建人
//   - 其余：合同交给序号最小的待签人
func (t *Tracker) settle(
	ctx context.Context,
	tx *gorm.DB,
	store *contract.Store,
	pkg *SignaturePackage,
	c *contract.Contract,
	actorID string,
	now time.Time,
) ([]notification.Event, error) {
	next := DerivePackageStatus(pkg.Signatures)
	creator := &c.CreatedByID

	if next == PackagePending {
		return t.transition(ctx, store, c, c.Status, nextSigner(pkg.Signatures), actorID, "signature")
	}

	updates := map[string]any{"status": next}
	if next == PackageCompleted {
		updates["completed_at"] = now
		pkg.CompletedAt = &now
	}
	if err := tx.Model(&SignaturePackage{}).Where("id = ?", pkg.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("更新签署包状态失败: %w", err)
	}
	pkg.Status = next

	events := []notification.Event{{
		Type:       notification.EventSignaturePackageClosed,
		ContractID: c.ID,
		PackageID:  pkg.ID,
		ActorID:    actorID,
		ToStatus:   string(next),
		Recipients: []string{c.CreatedByID},
	}}

	target := c.Status
	if next == PackageCompleted {
		target = contract.StatusActive
		metrics.SignaturePackagesCompletedTotal.Inc()
	}
	transition, err := t.transition(ctx, store, c, target, creator, actorID, "signature_"+string(next))
	if err != nil {
		return nil, err
	}
	return append(events, transition...), nil
}

func (t *Tracker) transition(ctx context.Context, store *contract.Store, c *contract.Contract, to contract.Status, assignee *string, actorID, reason string) ([]notification.Event, error) {
	from := c.Status
	changed, err := store.Apply(ctx, c, contract.Transition{
		To:         to,
		AssignedTo: assignee,
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
		ToStatus:     string(to),
		AssignedToID: common.StringValue(assignee),
	}
	if from == to {
		evt.Type = notification.EventContractAssigned
	}
	if assignee != nil {
		evt.Recipients = []string{*assignee}
	}
	return []notification.Event{evt}, nil
}

// validateSigners 签署人不能重复，至少一个必签人，且必须是在职用户
func (t *Tracker) validateSigners(ctx context.Context, signers []SignerInput) error {
	if len(signers) == 0 {
		return common.ValidationError("签署人不能为空")
	}
	seen := make(map[string]struct{}, len(signers))
	required := false
	for _, s := range signers {
		if s.UserID == "" {
			return common.ValidationError("签署人ID不能为空")
		}
		if _, dup := seen[s.UserID]; dup {
			return common.ValidationError("签署人重复: %s", s.UserID)
		}
		seen[s.UserID] = struct{}{}
		required = required || !s.Optional

		user, err := t.dir.UserByID(ctx, s.UserID)
		if errors.Is(err, common.ErrNotFound) || (err == nil && !user.Active) {
			return common.ValidationError("签署人不存在或已停用: %s", s.UserID)
		}
		if err != nil {
			return common.ExternalLookupError("查询签署人失败", err)
		}
	}
	if !required {
		return common.ValidationError("至少需要一个必签人")
	}
	return nil
}

// authorizeOwner 合同创建人或系统管理员
func (t *Tracker) authorizeOwner(ctx context.Context, c *contract.Contract, actorID string, denied error) error {
	if actorID != "" && actorID == c.CreatedByID {
		return nil
	}
	user, err := t.dir.UserByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return denied
		}
		return common.ExternalLookupError("查询操作人失败", err)
	}
	if !user.Active || !user.IsAdmin() {
		return denied
	}
	return nil
}

func (t *Tracker) loadSignature(db *gorm.DB, id string) (*DigitalSignature, error) {
	var sig DigitalSignature
	if err := db.Where("id = ?", id).First(&sig).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSignatureNotFound
		}
		return nil, fmt.Errorf("查询签署记录失败: %w", err)
	}
	return &sig, nil
}

func (t *Tracker) loadPackage(db *gorm.DB, contractID string) (*SignaturePackage, error) {
	var pkg SignaturePackage
	err := db.
		Preload("Signatures", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Scopes(common.ByContract(contractID)).
		First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("查询签署包失败: %w", err)
	}
	return &pkg, nil
}

func (t *Tracker) emit(ctx context.Context, events []notification.Event) {
	if t.notifier == nil {
		return
	}
	now := t.now()
	for _, evt := range events {
		evt.OccurredAt = now
		if err := t.notifier.Notify(ctx, evt); err != nil {
			logger.WithContext(ctx, t.logger).Warn("发送签署事件失败",
				zap.String("type", string(evt.Type)),
				zap.Error(err),
			)
		}
	}
}

func (t *Tracker) finish(span trace.Span, action string, err error) {
	result := "success"
	if err != nil {
		result = string(common.KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.SignatureActionsTotal.WithLabelValues(action, result).Inc()
	span.End()
}

func nextSigner(signatures []DigitalSignature) *string {
	ordered := slices.Clone(signatures)
	slices.SortStableFunc(ordered, func(a, b DigitalSignature) int { return a.Sequence - b.Sequence })
	for _, s := range ordered {
		if s.Status == StatusPending {
			id := s.UserID
			return &id
		}
	}
	return nil
}

func actionEvent(action string) notification.EventType {
	switch action {
	case "sign":
		return notification.EventSignatureSigned
	case "decline":
		return notification.EventSignatureDeclined
	}
	return notification.EventSignatureCancelled
}
