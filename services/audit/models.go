package audit

import (
	"time"
)

// Action codes recorded for every authentication decision point.
const (
	ActionLoginSuccess      = "auth.login.success"
	ActionLoginFailed       = "auth.login.failed"
	ActionLoginLocked       = "auth.login.locked"
	ActionLoginUnknownEmail = "auth.login.unknown_email"
	ActionLoginInactive     = "auth.login.inactive"
	ActionLoginMembership   = "auth.login.membership_invalid"
	ActionAdminLockSkipped  = "auth.login.admin_lock_skipped"

	ActionTwoFAChallenge    = "auth.2fa.challenge"
	ActionTwoFAVerified     = "auth.2fa.verified"
	ActionTwoFAFailed       = "auth.2fa.failed"
	ActionTwoFAEnabled      = "auth.2fa.enabled"
	ActionTwoFADisabled     = "auth.2fa.disabled"
	ActionTwoFABypassed     = "auth.2fa.bypassed"
	ActionOTPDispatched     = "auth.2fa.otp_dispatched"
	ActionPINVerified       = "auth.pin.verified"
	ActionPINFailed         = "auth.pin.failed"
	ActionPINLocked         = "auth.pin.locked"
	ActionPINChanged        = "auth.pin.changed"
	ActionPINRemoved        = "auth.pin.removed"
	ActionPINReset          = "auth.pin.admin_reset"
	ActionTokenIssued       = "auth.token.issued"
	ActionTokenRotated      = "auth.token.rotated"
	ActionTokenReissued     = "auth.token.reissued"
	ActionTokenExpired      = "auth.token.expired"
	ActionTokenRevoked      = "auth.token.revoked"
	ActionDeviceTrusted     = "auth.device.trusted"
	ActionDeviceRevoked     = "auth.device.revoked"
	ActionRateLimitExceeded = "auth.ratelimit.exceeded"
)

// Actor kinds used to key rate-limit and audit lookups.
const (
	ActorMember  = "member"
	ActorManager = "manager"
	ActorSystem  = "system"
)

type Event struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	OrganizationID uint      `json:"organization_id" gorm:"index"`
	Action         string    `json:"action" gorm:"size:64;not null;index:idx_audit_actor_action"`
	ActorKind      string    `json:"actor_kind" gorm:"size:16;index:idx_audit_actor_action"`
	ActorID        uint      `json:"actor_id" gorm:"index:idx_audit_actor_action"`
	Success        bool      `json:"success"`
	Detail         string    `json:"detail" gorm:"size:500"`
	ClientIP       string    `json:"client_ip" gorm:"size:64"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

func (Event) TableName() string {
	return "audit_events"
}
