package common

import "gorm.io/gorm"

// ByContract 按合同ID过滤
// 使用方法：db.Scopes(common.ByContract(contractID)).Find(&approvals)
func ByContract(contractID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("contract_id = ?", contractID)
	}
}

// WithStatus 按状态过滤，支持多个状态
func WithStatus(statuses ...string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 1 {
			return db.Where("status = ?", statuses[0])
		}
		return db.Where("status IN ?", statuses)
	}
}

// CreationOrder 按创建顺序排序
func CreationOrder() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence ASC").Order("created_at ASC")
	}
}
