package twofa

// Evaluation statuses returned to the login flow. These are HTTP 200
// sentinels, not errors: the password already verified.
const (
	StatusOK                = "OK"
	StatusPINRequired       = "REQUIRES_PIN"
	StatusChallengeRequired = "REQUIRES_2FA"
)

// EvaluateRequest carries the request-scoped inputs of the enforcement
// decision.
type EvaluateRequest struct {
	PIN           string
	DeviceHash    string
	RememberToken string
}

type Evaluation struct {
	Status         string
	ChallengeToken string
}

// SetupData is returned by InitSetup so the member can program an
// authenticator app. The plaintext secret is never stored.
type SetupData struct {
	Secret          string
	ProvisioningURI string
}

// UsedCode prevents replay of a TOTP code inside its validity window.
type UsedCode struct {
	ID       uint   `gorm:"primaryKey"`
	MemberID uint   `gorm:"index:idx_member_code,priority:1;not null"`
	Code     string `gorm:"index:idx_member_code,priority:2;not null"`
	UsedAt   int64  `gorm:"index;not null"`
}

func (UsedCode) TableName() string {
	return "twofa_used_codes"
}
