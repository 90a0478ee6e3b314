package contract

import (
	"context"
	"errors"
	"fmt"

	"contracthub/internal/common"
	"contracthub/internal/metrics"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrContractNotFound 合同不存在
var ErrContractNotFound = common.NotFoundError(common.CodeContractNotFound, "")

// ErrContractLocked 签署中或已生效的合同不能修改字段，也不能重新发起审批
var ErrContractLocked = common.BusinessLogicError(common.CodeContractLocked, "")

// Store 合同数据访问
type Store struct {
	db *gorm.DB
}

// NewStore 创建合同存储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx 返回绑定到事务的存储
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Create 创建合同，未设置状态时为草稿
func (s *Store) Create(ctx context.Context, c *Contract) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("创建合同失败: %w", err)
	}
	return nil
}

// Get 查询合同
func (s *Store) Get(ctx context.Context, id string) (*Contract, error) {
	return s.get(s.db.WithContext(ctx), id)
}

// GetForUpdate 查询合同并加行锁，必须在事务内调用
// SQLite 不支持 FOR UPDATE，由上层的合同锁保证串行
func (s *Store) GetForUpdate(ctx context.Context, id string) (*Contract, error) {
	return s.get(s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *Store) get(db *gorm.DB, id string) (*Contract, error) {
	var c Contract
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("查询合同失败: %w", err)
	}
	return &c, nil
}

// UpdateFields 合并写入合同字段，值为 nil 的字段被删除
// 读回的数字字段为 json.Number
func (s *Store) UpdateFields(ctx context.Context, id string, fields map[string]any) (*Contract, error) {
	var updated *Contract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.WithTx(tx).GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Locked() {
			return ErrContractLocked
		}

		merged := c.FieldValues()
		for k, v := range fields {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
		c.Fields = merged
		if err := tx.Model(&Contract{}).Where("id = ?", id).Update("fields", c.Fields).Error; err != nil {
			return fmt.Errorf("更新合同字段失败: %w", err)
		}
		// 重新读取，使返回的字段与存储后的表示一致
		updated, err = s.WithTx(tx).GetForUpdate(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Transition 合同状态流转参数
type Transition struct {
	To         Status
	AssignedTo *string
	ActorID    string
	Reason     string
}

// Apply 写入状态与当前处理人，并追加变更记录
// 状态与处理人都未变化时不写入，返回 false
func (s *Store) Apply(ctx context.Context, c *Contract, t Transition) (bool, error) {
	if !t.To.Valid() {
		return false, common.ValidationError("未知的合同状态: %s", t.To)
	}
	from := c.Status
	if from == t.To && sameAssignee(c.AssignedToID, t.AssignedTo) {
		return false, nil
	}

	db := s.db.WithContext(ctx)
	if err := db.Model(&Contract{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{
			"status":         t.To,
			"assigned_to_id": t.AssignedTo,
		}).Error; err != nil {
		return false, fmt.Errorf("更新合同状态失败: %w", err)
	}

	change := StatusChange{
		ID:           uuid.NewString(),
		ContractID:   c.ID,
		FromStatus:   from,
		ToStatus:     t.To,
		AssignedToID: t.AssignedTo,
		ActorID:      common.StringPtr(t.ActorID),
		Reason:       t.Reason,
	}
	if err := db.Create(&change).Error; err != nil {
		return false, fmt.Errorf("记录合同状态变更失败: %w", err)
	}

	if from != t.To {
		metrics.ContractStatusTransitionsTotal.WithLabelValues(string(from), string(t.To)).Inc()
	}
	c.Status = t.To
	c.AssignedToID = t.AssignedTo
	return true, nil
}

// StartApprovalRound 进入新一轮审批并记录审批变体
func (s *Store) StartApprovalRound(ctx context.Context, c *Contract, variant string) error {
	round := c.ApprovalRound + 1
	if err := s.db.WithContext(ctx).Model(&Contract{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{
			"approval_round":   round,
			"approval_variant": variant,
		}).Error; err != nil {
		return fmt.Errorf("更新审批轮次失败: %w", err)
	}
	c.ApprovalRound = round
	c.ApprovalVariant = variant
	return nil
}

// History 查询合同状态变更记录
func (s *Store) History(ctx context.Context, contractID string) ([]StatusChange, error) {
	var changes []StatusChange
	if err := s.db.WithContext(ctx).
		Scopes(common.ByContract(contractID)).
		Order("created_at ASC").
		Find(&changes).Error; err != nil {
		return nil, fmt.Errorf("查询合同状态变更失败: %w", err)
	}
	return changes, nil
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
