package directory

import (
	"context"

	"contracthub/internal/common"
)

var (
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = common.NotFoundError(common.CodeUserNotFound, "")
	// ErrTeamNotFound 团队不存在
	ErrTeamNotFound = common.NotFoundError(common.CodeTeamNotFound, "")
)

// Directory 用户目录查询接口
// 所有方法均为只读查询，结果按用户创建顺序返回
type Directory interface {
	// UserByID 按ID查询用户，不存在时返回 ErrUserNotFound
	UserByID(ctx context.Context, userID string) (*User, error)

	// UsersByDepartment 查询指定部门的所有在职用户
	UsersByDepartment(ctx context.Context, department string) ([]User, error)

	// UsersByRole 查询系统角色匹配的用户（忽略大小写）
	UsersByRole(ctx context.Context, role string) ([]User, error)

	// AllUsers 查询所有在职用户
	AllUsers(ctx context.Context) ([]User, error)

	// TeamMembers 查询团队成员，团队不存在时返回 ErrTeamNotFound
	TeamMembers(ctx context.Context, teamID string) ([]User, error)

	// ManagerOf 查询用户的直属上级，没有上级时返回 nil, nil
	ManagerOf(ctx context.Context, userID string) (*User, error)
}
