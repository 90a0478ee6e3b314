package signature

import (
	"time"

	"contracthub/internal/common"
)

// PackageStatus 签署包状态
type PackageStatus string

const (
	PackagePending   PackageStatus = "PENDING"
	PackageCompleted PackageStatus = "COMPLETED"
	PackageDeclined  PackageStatus = "DECLINED"
)

// Status 单个签署人的签署状态
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSigned    Status = "SIGNED"
	StatusDeclined  Status = "DECLINED"
	StatusCancelled Status = "CANCELLED"
)

// SignaturePackage 合同签署包，每个合同最多一个
type SignaturePackage struct {
	ID          string             `json:"id" gorm:"primaryKey;type:uuid"`
	ContractID  string             `json:"contractId" gorm:"type:uuid;not null;uniqueIndex"`
	Status      PackageStatus      `json:"status" gorm:"size:32;not null;index"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	CreatedByID string             `json:"createdById" gorm:"type:uuid;not null"`
	Signatures  []DigitalSignature `json:"signatures,omitempty" gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`

	common.TimestampModel
}

func (SignaturePackage) TableName() string {
	return "signature_packages"
}

// DigitalSignature 单个签署人的签署记录
// Required 为 false 的签署人可以跳过；ExpiresAt 为空表示不过期
type DigitalSignature struct {
	ID          string     `json:"id" gorm:"primaryKey;type:uuid"`
	PackageID   string     `json:"packageId" gorm:"type:uuid;not null;index"`
	ContractID  string     `json:"contractId" gorm:"type:uuid;not null;index"`
	UserID      string     `json:"userId" gorm:"type:uuid;not null;index"`
	Status      Status     `json:"status" gorm:"size:32;not null"`
	Required    bool       `json:"required" gorm:"not null"`
	SignedAt    *time.Time `json:"signedAt,omitempty"`
	DeclinedAt  *time.Time `json:"declinedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Reason      string     `json:"reason,omitempty" gorm:"type:text"`
	Sequence    int        `json:"sequence" gorm:"not null"`

	common.TimestampModel
}

func (DigitalSignature) TableName() string {
	return "digital_signatures"
}

// Expired 在给定时间点是否已过期
func (s *DigitalSignature) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Models 返回需要迁移的签署模型
func Models() []any {
	return []any{&SignaturePackage{}, &DigitalSignature{}}
}

// DerivePackageStatus 根据签署记录推导签署包状态
//   - 必签人拒签或被取消：DECLINED
//   - 每个签署人已签署，或为非必签且不再待签：COMPLETED
//   - 其余：PENDING
func DerivePackageStatus(signatures []DigitalSignature) PackageStatus {
	if len(signatures) == 0 {
		return PackagePending
	}
	complete := true
	for _, s := range signatures {
		switch {
		case s.Required && (s.Status == StatusDeclined || s.Status == StatusCancelled):
			return PackageDeclined
		case s.Status == StatusSigned:
		case !s.Required && s.Status != StatusPending:
		default:
			complete = false
		}
	}
	if complete {
		return PackageCompleted
	}
	return PackagePending
}
