package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// GormDirectory 基于关系库的用户目录
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory 创建用户目录
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) activeUsers(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx).
		Model(&User{}).
		Where("users.active = ?", true).
		Order("users.created_at ASC").
		Order("users.id ASC")
}

// UserByID 按ID查询用户
func (d *GormDirectory) UserByID(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := d.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// UsersByDepartment 查询部门成员
func (d *GormDirectory) UsersByDepartment(ctx context.Context, department string) ([]User, error) {
	var users []User
	if err := d.activeUsers(ctx).
		Where("users.department = ?", strings.TrimSpace(department)).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("查询部门成员失败: %w", err)
	}
	return users, nil
}

// UsersByRole 查询角色成员
func (d *GormDirectory) UsersByRole(ctx context.Context, role string) ([]User, error) {
	var users []User
	if err := d.activeUsers(ctx).
		Where("UPPER(users.system_role) = ?", strings.ToUpper(strings.TrimSpace(role))).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("查询角色成员失败: %w", err)
	}
	return users, nil
}

// AllUsers 查询全部在职用户
func (d *GormDirectory) AllUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := d.activeUsers(ctx).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("查询用户列表失败: %w", err)
	}
	return users, nil
}

// TeamMembers 查询团队成员
func (d *GormDirectory) TeamMembers(ctx context.Context, teamID string) ([]User, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&Team{}).Where("id = ?", teamID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("查询团队失败: %w", err)
	}
	if count == 0 {
		return nil, ErrTeamNotFound
	}

	var users []User
	if err := d.activeUsers(ctx).
		Joins("JOIN team_members tm ON tm.user_id = users.id").
		Where("tm.team_id = ?", teamID).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("查询团队成员失败: %w", err)
	}
	return users, nil
}

// ManagerOf 查询直属上级
func (d *GormDirectory) ManagerOf(ctx context.Context, userID string) (*User, error) {
	user, err := d.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ManagerID == nil || *user.ManagerID == "" {
		return nil, nil
	}
	manager, err := d.UserByID(ctx, *user.ManagerID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !manager.Active {
		return nil, nil
	}
	return manager, nil
}
