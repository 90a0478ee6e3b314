package workflow

import (
	"context"
	"errors"
	"fmt"

	"contracthub/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTemplateNotFound 模板不存在
var ErrTemplateNotFound = common.NotFoundError(common.CodeTemplateNotFound, "")

// TemplateService 审批模板管理服务
type TemplateService struct {
	db *gorm.DB
}

// NewTemplateService 创建 TemplateService 实例
func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

// WithTx 返回绑定到事务的服务
func (s *TemplateService) WithTx(tx *gorm.DB) *TemplateService {
	return &TemplateService{db: tx}
}

// ListTemplatesResponse 模板列表响应
type ListTemplatesResponse struct {
	Templates  []*WorkflowTemplate `json:"templates"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
}

// ListTemplates 查询模板列表（不含步骤）
func (s *TemplateService) ListTemplates(ctx context.Context, page, pageSize int) (*ListTemplatesResponse, error) {
	query := s.db.WithContext(ctx).Model(&WorkflowTemplate{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("统计模板数量失败: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var templates []*WorkflowTemplate
	if err := query.
		Order("name ASC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("查询模板列表失败: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &ListTemplatesResponse{
		Templates:  templates,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetTemplate 查询模板及其有序步骤和条件
func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*WorkflowTemplate, error) {
	var tpl WorkflowTemplate
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("Steps.Conditions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("查询模板失败: %w", err)
	}
	return &tpl, nil
}

// CreateTemplate 校验并创建模板
func (s *TemplateService) CreateTemplate(ctx context.Context, tpl *WorkflowTemplate) error {
	if err := ValidateTemplate(tpl); err != nil {
		return err
	}
	assignIDs(tpl)
	if err := s.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return fmt.Errorf("创建模板失败: %w", err)
	}
	return nil
}

// SaveTemplateByName 按名称创建或整体替换模板，用于初始化预置模板
func (s *TemplateService) SaveTemplateByName(ctx context.Context, tpl *WorkflowTemplate) error {
	if err := ValidateTemplate(tpl); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing WorkflowTemplate
		err := tx.Where("name = ?", tpl.Name).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			assignIDs(tpl)
			if err := tx.Create(tpl).Error; err != nil {
				return fmt.Errorf("创建模板失败: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("查询模板失败: %w", err)
		}

		if err := deleteSteps(tx, existing.ID); err != nil {
			return err
		}
		tpl.ID = existing.ID
		tpl.CreatedAt = existing.CreatedAt
		assignIDs(tpl)
		if err := tx.Model(&existing).Updates(map[string]any{
			"description": tpl.Description,
		}).Error; err != nil {
			return fmt.Errorf("更新模板失败: %w", err)
		}
		if len(tpl.Steps) > 0 {
			if err := tx.Create(&tpl.Steps).Error; err != nil {
				return fmt.Errorf("保存模板步骤失败: %w", err)
			}
		}
		return nil
	})
}

// DeleteTemplate 删除模板及其步骤
func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteSteps(tx, id); err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&WorkflowTemplate{})
		if result.Error != nil {
			return fmt.Errorf("删除模板失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrTemplateNotFound
		}
		return nil
	})
}

func deleteSteps(tx *gorm.DB, templateID string) error {
	stepIDs := tx.Model(&WorkflowStep{}).Select("id").Where("template_id = ?", templateID)
	if err := tx.Where("step_id IN (?)", stepIDs).Delete(&ApproverCondition{}).Error; err != nil {
		return fmt.Errorf("删除步骤条件失败: %w", err)
	}
	if err := tx.Where("template_id = ?", templateID).Delete(&WorkflowStep{}).Error; err != nil {
		return fmt.Errorf("删除模板步骤失败: %w", err)
	}
	return nil
}

func assignIDs(tpl *WorkflowTemplate) {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	for i := range tpl.Steps {
		step := &tpl.Steps[i]
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		step.TemplateID = tpl.ID
		for j := range step.Conditions {
			c := &step.Conditions[j]
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			c.StepID = step.ID
		}
	}
}
