package template

import (
	"context"
	"errors"
	"fmt"
	"os"

	"contracthub/internal/logger"
	"contracthub/internal/workflow"

	"go.uber.org/zap"
)

// Seeder 将预置模板写入数据库，按名称覆盖已有模板
type Seeder struct {
	loader    *TemplateLoader
	templates *workflow.TemplateService
	logger    *zap.Logger
}

// NewSeeder 创建模板初始化器
func NewSeeder(templates *workflow.TemplateService, l *zap.Logger) *Seeder {
	if l == nil {
		l = logger.OrNop()
	}
	return &Seeder{
		loader:    NewTemplateLoader(),
		templates: templates,
		logger:    l,
	}
}

// Seed 加载 path（文件或目录）中的模板并保存
// path 为空或不存在时跳过；单个模板校验失败记录日志并继续
func (s *Seeder) Seed(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("模板路径不存在，跳过初始化", zap.String("path", path))
		return 0, nil
	}

	if err := s.loader.LoadPath(path); err != nil {
		s.logger.Warn("部分模板文件加载失败", zap.String("path", path), zap.Error(err))
	}

	saved := 0
	var errs []error
	for _, key := range s.loader.Keys() {
		def, err := s.loader.GetTemplate(key)
		if err != nil {
			return saved, err
		}
		tpl, err := def.ToModel()
		if err == nil {
			err = s.templates.SaveTemplateByName(ctx, tpl)
		}
		if err != nil {
			s.logger.Warn("预置模板保存失败", zap.String("key", key), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		saved++
	}

	s.logger.Info("工作流模板初始化完成", zap.Int("saved", saved), zap.Int("failed", len(errs)))
	return saved, errors.Join(errs...)
}
