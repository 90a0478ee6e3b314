package template

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"contracthub/internal/workflow"
	"contracthub/internal/workflow/condition"

	"gopkg.in/yaml.v3"
)

// TemplateLoader 从 YAML 文件加载预置审批模板
type TemplateLoader struct {
	templates map[string]*Template
	mu        sync.RWMutex
}

// Template 模板文件中的审批模板
type Template struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// Step 模板文件中的审批步骤，Order 为空时按出现顺序编号
type Step struct {
	Order      int         `yaml:"order" json:"order"`
	Name       string      `yaml:"name" json:"name"`
	Approver   Approver    `yaml:"approver" json:"approver"`
	Conditions []Condition `yaml:"conditions" json:"conditions"`
}

// Approver 审批人定义
type Approver struct {
	Type  workflow.ApproverType `yaml:"type" json:"type"`
	Value string                `yaml:"value" json:"value"`
}

// Condition 步骤条件，Type 为空时为 WHEN_TO_APPROVE
type Condition struct {
	condition.Condition `yaml:",inline"`
	Type                workflow.ConditionType `yaml:"type,omitempty" json:"type,omitempty"`
}

// TemplateConfig 模板配置文件
type TemplateConfig struct {
	Templates map[string]*Template `yaml:"templates"`
}

// NewTemplateLoader 创建模板加载器
func NewTemplateLoader() *TemplateLoader {
	return &TemplateLoader{
		templates: make(map[string]*Template),
	}
}

// LoadFromFile 从文件加载模板
func (l *TemplateLoader) LoadFromFile(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("读取模板配置文件失败: %w", err)
	}
	return l.Load(data)
}

// Load 解析 YAML 内容
func (l *TemplateLoader) Load(data []byte) error {
	var config TemplateConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("解析模板配置失败: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, tpl := range config.Templates {
		if tpl == nil {
			continue
		}
		if tpl.Name == "" {
			tpl.Name = key
		}
		l.templates[key] = tpl
	}
	return nil
}

// LoadFromDirectory 从目录加载所有模板文件
// 单个文件失败不影响其他文件，所有错误合并返回
func (l *TemplateLoader) LoadFromDirectory(dirPath string) error {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matched, err := filepath.Glob(filepath.Join(dirPath, pattern))
		if err != nil {
			return fmt.Errorf("遍历模板目录失败: %w", err)
		}
		files = append(files, matched...)
	}
	slices.Sort(files)

	var errs []error
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(file), err))
		}
	}
	return errors.Join(errs...)
}

// LoadPath 按路径类型加载单个文件或整个目录
func (l *TemplateLoader) LoadPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("读取模板路径失败: %w", err)
	}
	if info.IsDir() {
		return l.LoadFromDirectory(path)
	}
	return l.LoadFromFile(path)
}

// GetTemplate 获取模板
func (l *TemplateLoader) GetTemplate(key string) (*Template, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tpl, ok := l.templates[key]
	if !ok {
		return nil, fmt.Errorf("模板不存在: %s", key)
	}
	return tpl, nil
}

// Keys 按字典序返回模板键
func (l *TemplateLoader) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.templates))
}

// ToModel 转换为可持久化的模板模型
func (t *Template) ToModel() (*workflow.WorkflowTemplate, error) {
	tpl := &workflow.WorkflowTemplate{
		Name:        t.Name,
		Description: t.Description,
	}
	for i, s := range t.Steps {
		order := s.Order
		if order == 0 {
			order = i + 1
		}
		step := workflow.WorkflowStep{
			StepOrder:     order,
			Name:          s.Name,
			ApproverType:  s.Approver.Type,
			ApproverValue: s.Approver.Value,
		}
		for j, c := range s.Conditions {
			cond := workflow.ApproverCondition{
				Position:        j + 1,
				Field:           c.Field,
				Operator:        string(c.Operator),
				LogicalOperator: string(c.LogicalOperator),
				Type:            c.Type,
				FieldType:       string(c.FieldType),
			}
			if err := cond.SetValue(c.Value); err != nil {
				return nil, fmt.Errorf("模板 %s 步骤 %d: %w", t.Name, order, err)
			}
			step.Conditions = append(step.Conditions, cond)
		}
		tpl.Steps = append(tpl.Steps, step)
	}
	return tpl, nil
}
