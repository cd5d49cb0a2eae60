package member

import (
	"strings"
	"time"
)

// Roles. Administrators and superusers bypass account-status gating and may be
// exempt from automatic lockout by configuration.
const (
	RoleMember        = "member"
	RoleAdministrator = "administrator"
	RoleSuperuser     = "superuser"
)

// Account statuses.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// Second-factor channels.
const (
	ChannelTOTP  = "totp"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type Member struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	OrganizationID uint   `json:"organization_id" gorm:"index;not null"`
	Email          string `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash   string `json:"-" gorm:"size:255;not null"`
	PhoneNumber    string `json:"phone_number" gorm:"size:32"`
	Role           string `json:"role" gorm:"size:32;not null;default:member"`
	Status         string `json:"status" gorm:"size:32;not null;default:active"`

	// Membership validity; checked by the external business-rule gate.
	MembershipExpiresAt *time.Time `json:"membership_expires_at"`

	// Failed-login state. Counters are reset only by successful verification
	// or by passage of the configured reset window, never decremented.
	FailedLoginAttempts int        `json:"-"`
	LastFailedLogin     *time.Time `json:"-"`
	LockedUntil         *time.Time `json:"-"`

	// Two-factor state. TwoFASecret holds the codec-encrypted TOTP secret.
	TwoFASecret        string     `json:"-" gorm:"size:512"`
	TwoFAEnabled       bool       `json:"two_fa_enabled" gorm:"not null;default:false"`
	TwoFAConfirmedAt   *time.Time `json:"-"`
	TwoFAChannel       string     `json:"-" gorm:"size:16"`
	RecoveryCodeHashes string     `json:"-" gorm:"size:2048"`

	// PIN sub-channel state, independent of the login lockout counters.
	PINHash          string     `json:"-" gorm:"size:255"`
	PINSetAt         *time.Time `json:"-"`
	PINAttempts      int        `json:"-"`
	PINLockedUntil   *time.Time `json:"-"`
	PINResetRequired bool       `json:"-" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

func (m *Member) IsPrivileged() bool {
	return m.Role == RoleAdministrator || m.Role == RoleSuperuser
}

func (m *Member) HasPIN() bool {
	return m.PINHash != ""
}

// Organization carries the per-tenant toggles the auth core consults. Tenant
// resolution itself happens upstream; the core only receives the record.
type Organization struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:255;not null"`

	TwoFARequired         bool   `json:"two_fa_required" gorm:"not null;default:false"`
	TwoFARequiredRoles    string `json:"two_fa_required_roles" gorm:"size:255"`
	PINEnabled            bool   `json:"pin_enabled" gorm:"not null;default:false"`
	TrustedDevicesEnabled bool   `json:"trusted_devices_enabled" gorm:"not null;default:false"`
	RememberDeviceDays    int    `json:"remember_device_days"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Organization) TableName() string {
	return "organizations"
}

func (o *Organization) RequiredRoles() []string {
	if o.TwoFARequiredRoles == "" {
		return nil
	}
	return strings.Split(o.TwoFARequiredRoles, ",")
}
