package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contracthub/internal/common"
	"contracthub/internal/directory"
	"contracthub/internal/logger"
	"contracthub/internal/metrics"
	"contracthub/internal/workflow"

	"go.uber.org/zap"
)

// Resolver 将审批人定义解析为具体用户集合
// 查询失败时记录日志并返回空集合，不中断整个模板的解析
type Resolver struct {
	dir     directory.Directory
	timeout time.Duration
	logger  *zap.Logger
}

// ResolverOption 自定义配置
type ResolverOption func(*Resolver)

// WithLookupTimeout 设置单次目录查询超时
func WithLookupTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.timeout = d }
}

// WithResolverLogger 注入自定义日志器
func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver 创建解析器
func NewResolver(dir directory.Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		dir:     dir,
		timeout: 3 * time.Second,
		logger:  logger.OrNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve 解析审批人定义，initiatorID 用于动态审批人
func (r *Resolver) Resolve(ctx context.Context, spec workflow.ApproverSpec, initiatorID string) *UserSet {
	users, err := r.lookup(ctx, spec, initiatorID)
	if err != nil {
		kind := failureKind(err)
		metrics.ApproverResolutionFailuresTotal.WithLabelValues(kind).Inc()
		logger.WithContext(ctx, r.logger).Warn("审批人解析失败，该步骤不贡献审批人",
			zap.String("kind", kind),
			zap.Error(lookupError(spec, err)),
		)
		return NewUserSet()
	}

	set := NewUserSet()
	for _, u := range users {
		set.Add(u.ID)
	}
	if set.Len() == 0 {
		logger.WithContext(ctx, r.logger).Info("审批人定义未解析到用户", zap.String("spec", spec.String()))
	}
	return set
}

func (r *Resolver) lookup(ctx context.Context, spec workflow.ApproverSpec, initiatorID string) ([]directory.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	switch s := spec.(type) {
	case workflow.UserSpec:
		user, err := r.dir.UserByID(ctx, s.UserID)
		if err != nil {
			return nil, err
		}
		if !user.Active {
			return nil, nil
		}
		return []directory.User{*user}, nil

	case workflow.GroupSpec:
		return r.lookupGroup(ctx, s.Group)

	case workflow.RoleSpec:
		return r.dir.UsersByRole(ctx, s.Role)

	case workflow.ManagerSpec:
		if initiatorID == "" {
			return nil, nil
		}
		manager, err := r.dir.ManagerOf(ctx, initiatorID)
		if err != nil || manager == nil {
			return nil, err
		}
		return []directory.User{*manager}, nil
	}
	return nil, common.ValidationError("未知的审批人定义: %T", spec)
}

func (r *Resolver) lookupGroup(ctx context.Context, group workflow.GroupRef) ([]directory.User, error) {
	switch g := group.(type) {
	case workflow.Department:
		return r.dir.UsersByDepartment(ctx, g.Name)
	case workflow.AllAdmins:
		return r.dir.UsersByRole(ctx, directory.RoleAdmin)
	case workflow.Everyone:
		return r.dir.AllUsers(ctx)
	case workflow.Team:
		return r.dir.TeamMembers(ctx, g.ID)
	}
	return nil, common.ValidationError("未知的用户组: %T", group)
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// failureKind 解析失败分类，用于日志与指标
func failureKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrValidation):
		return "invalid"
	}
	return "lookup"
}

// lookupError 将目录查询错误包装为外部查询错误
func lookupError(spec workflow.ApproverSpec, err error) error {
	return common.ExternalLookupError(fmt.Sprintf("解析审批人 %s 失败", spec), err)
}
