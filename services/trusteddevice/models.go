package trusteddevice

import (
	"time"
)

// TrustedDevice is the authoritative allow-list entry consulted during login,
// independent of remember-device cookie possession. Because it lives
// server-side it can be revoked.
type TrustedDevice struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	OrganizationID uint      `json:"organization_id" gorm:"not null;index:idx_trusted_lookup"`
	MemberID       uint      `json:"member_id" gorm:"not null;index:idx_trusted_lookup"`
	DeviceHash     string    `json:"-" gorm:"size:64;not null;index:idx_trusted_lookup"`
	Name           string    `json:"name" gorm:"size:255"`
	ExpiresAt      time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt      time.Time `json:"created_at"`
}

func (TrustedDevice) TableName() string {
	return "trusted_devices"
}
