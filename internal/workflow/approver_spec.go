package workflow

import (
	"strings"

	"contracthub/internal/common"

	"github.com/google/uuid"
)

// DynamicInitiatorManager 动态审批人：发起人的直属上级
const DynamicInitiatorManager = "initiator_manager"

// ApproverSpec 审批人定义，取值只能是 UserSpec、GroupSpec、RoleSpec、ManagerSpec
type ApproverSpec interface {
	approverSpec()
	String() string
}

// UserSpec 指定用户
type UserSpec struct {
	UserID string
}

// GroupSpec 用户组
type GroupSpec struct {
	Group GroupRef
}

// RoleSpec 系统角色
type RoleSpec struct {
	Role string
}

// ManagerSpec 发起人的直属上级
type ManagerSpec struct{}

func (UserSpec) approverSpec()    {}
func (GroupSpec) approverSpec()   {}
func (RoleSpec) approverSpec()    {}
func (ManagerSpec) approverSpec() {}

func (s UserSpec) String() string  { return "user:" + s.UserID }
func (s GroupSpec) String() string { return "group:" + s.Group.String() }
func (s RoleSpec) String() string  { return "role:" + s.Role }
func (ManagerSpec) String() string { return "dynamic:" + DynamicInitiatorManager }

// GroupRef 用户组引用，取值只能是 Department、AllAdmins、Everyone、Team
type GroupRef interface {
	groupRef()
	String() string
}

// Department 按部门名称
type Department struct {
	Name string
}

// AllAdmins 全部系统管理员
type AllAdmins struct{}

// Everyone 全部用户
type Everyone struct{}

// Team 按团队ID
type Team struct {
	ID string
}

func (Department) groupRef() {}
func (AllAdmins) groupRef()  {}
func (Everyone) groupRef()   {}
func (Team) groupRef()       {}

func (g Department) String() string { return "department:" + g.Name }
func (AllAdmins) String() string    { return "administrators" }
func (Everyone) String() string     { return "everyone" }
func (g Team) String() string       { return "team:" + g.ID }

// ParseGroupRef 解析用户组引用
// 支持 administrators、everyone、team:<id>、department:<name>；
// 其他取值中 UUID 视为团队ID，其余视为部门名称
func ParseGroupRef(raw string) (GroupRef, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, common.ValidationError("用户组不能为空")
	}
	switch strings.ToLower(value) {
	case "administrators":
		return AllAdmins{}, nil
	case "everyone":
		return Everyone{}, nil
	}
	if prefix, rest, ok := strings.Cut(value, ":"); ok {
		rest = strings.TrimSpace(rest)
		switch strings.ToLower(prefix) {
		case "team":
			if rest == "" {
				return nil, common.ValidationError("团队ID不能为空")
			}
			return Team{ID: rest}, nil
		case "department":
			if rest == "" {
				return nil, common.ValidationError("部门名称不能为空")
			}
			return Department{Name: rest}, nil
		}
	}
	if _, err := uuid.Parse(value); err == nil {
		return Team{ID: value}, nil
	}
	return Department{Name: value}, nil
}

// ParseApproverSpec 按类型解析审批人定义
func ParseApproverSpec(kind ApproverType, value string) (ApproverSpec, error) {
	value = strings.TrimSpace(value)
	switch ApproverType(strings.ToUpper(string(kind))) {
	case ApproverUser:
		if value == "" {
			return nil, common.ValidationError("USER 类型缺少用户ID")
		}
		return UserSpec{UserID: value}, nil
	case ApproverGroup:
		group, err := ParseGroupRef(value)
		if err != nil {
			return nil, err
		}
		return GroupSpec{Group: group}, nil
	case ApproverRole:
		if value == "" {
			return nil, common.ValidationError("ROLE 类型缺少角色")
		}
		return RoleSpec{Role: value}, nil
	case ApproverDynamic:
		if value != "" && !strings.EqualFold(value, DynamicInitiatorManager) {
			return nil, common.ValidationError("不支持的动态审批人: %s", value)
		}
		return ManagerSpec{}, nil
	}
	return nil, common.ValidationError("未知的审批人类型: %s", kind)
}
