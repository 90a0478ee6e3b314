package directory

import (
	"strings"

	"contracthub/internal/common"
)

// 系统角色
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleUser    = "USER"
)

// User 用户档案
// 部门与部门角色为可选字段，未设置时为 nil
type User struct {
	ID             string  `json:"id" gorm:"primaryKey;type:uuid"`
	Name           string  `json:"name" gorm:"size:255;not null"`
	Email          string  `json:"email" gorm:"size:255;not null"`
	Department     *string `json:"department,omitempty" gorm:"size:255;index"`
	DepartmentRole *string `json:"departmentRole,omitempty" gorm:"size:100"`
	SystemRole     string  `json:"systemRole" gorm:"size:50;not null;index"`
	ManagerID      *string `json:"managerId,omitempty" gorm:"type:uuid"`
	Active         bool    `json:"active" gorm:"not null"`

	common.TimestampModel
}

func (User) TableName() string {
	return "users"
}

// IsAdmin 是否系统管理员
func (u *User) IsAdmin() bool {
	return u != nil && strings.EqualFold(u.SystemRole, RoleAdmin)
}

// InDepartment 是否属于指定部门
func (u *User) InDepartment(name string) bool {
	if u == nil || u.Department == nil {
		return false
	}
	return *u.Department == name
}

// Team 团队
type Team struct {
	ID   string `json:"id" gorm:"primaryKey;type:uuid"`
	Name string `json:"name" gorm:"size:255;not null"`

	common.TimestampModel
}

func (Team) TableName() string {
	return "teams"
}

// TeamMember 团队成员关系
type TeamMember struct {
	TeamID string `json:"teamId" gorm:"primaryKey;type:uuid"`
	UserID string `json:"userId" gorm:"primaryKey;type:uuid"`
}

func (TeamMember) TableName() string {
	return "team_members"
}

// Models 返回需要迁移的目录模型
func Models() []any {
	return []any{&User{}, &Team{}, &TeamMember{}}
}
