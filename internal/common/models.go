package common

import "time"

// TimestampModel 时间戳基础模型
// 提供统一的创建时间和更新时间字段
type TimestampModel struct {
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// StringPtr 返回字符串指针，空字符串返回 nil
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue 安全解引用字符串指针
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
