package twofa

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/jwt"
	"github.com/clubops/memberauth/services/logging"
	"github.com/clubops/memberauth/services/member"
	"github.com/clubops/memberauth/services/pin"
	"github.com/clubops/memberauth/services/secrets"
	"github.com/clubops/memberauth/services/sms"
	"github.com/clubops/memberauth/services/trusteddevice"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrChallengeExpired tells the caller to restart from login.
	ErrChallengeExpired = errors.New("challenge has expired")
	ErrChallengeInvalid = errors.New("invalid challenge token")
	ErrInvalidCode      = errors.New("invalid verification code")
	ErrCodeAlreadyUsed  = errors.New("verification code has already been used")
	ErrNotEnrolled      = errors.New("two-factor authentication is not enabled")
	ErrAlreadyEnabled   = errors.New("two-factor authentication is already enabled")
	ErrSetupNotStarted  = errors.New("two-factor setup has not been started")
	// ErrUnsupportedChannel is client input, not an internal failure.
	ErrUnsupportedChannel = errors.New("unsupported verification channel")
)

// Mailer dispatches raw OTP codes over email.
type Mailer interface {
	SendOTPCode(to, code string, expiry time.Duration) error
}

// Service decides whether a second factor is required for a login, issues and
// consumes short-lived challenge tokens, and validates TOTP, email and SMS
// codes.
type Service struct {
	config  *config.Config
	db      *gorm.DB
	logger  *logging.Service
	audit   *audit.Service
	codec   *secrets.Codec
	jwt     *jwt.Service
	pin     *pin.Service
	trusted *trusteddevice.Service
	mailer  Mailer
	sms     sms.Provider
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service, auditSvc *audit.Service, codec *secrets.Codec,
	jwtSvc *jwt.Service, pinSvc *pin.Service, trustedSvc *trusteddevice.Service, mailer Mailer, smsProvider sms.Provider) *Service {
	if smsProvider == nil {
		smsProvider = sms.Disabled{}
	}

	return &Service{
		config:  cfg,
		db:      db,
		logger:  logger,
		audit:   auditSvc,
		codec:   codec,
		jwt:     jwtSvc,
		pin:     pinSvc,
		trusted: trustedSvc,
		mailer:  mailer,
		sms:     smsProvider,
	}
}

// Enforced computes whether the second factor applies to this principal at
// all. A principal who never completed enrollment is not blocked by an
// enforcement flag: enforcement without a configured factor is moot.
func (s *Service) Enforced(org *member.Organization, m *member.Member) bool {
	if !m.TwoFAEnabled {
		return false
	}

	if s.config.TwoFA.Required {
		return true
	}

	if org == nil || !org.TwoFARequired {
		return false
	}

	roles := org.RequiredRoles()
	if len(roles) == 0 {
		roles = s.config.TwoFA.RequiredRoles
	}
	if len(roles) == 0 {
		// No role restriction configured: the tenant flag applies to everyone.
		return true
	}

	return slices.Contains(roles, m.Role) || m.IsPrivileged()
}

// Evaluate runs the post-password gates for a login attempt: PIN gate first,
// then the trusted-device and remember-device bypasses, then challenge
// issuance. The registry is authoritative; the remember-device cookie is only
// consulted when no registry grant matches.
func (s *Service) Evaluate(org *member.Organization, m *member.Member, req EvaluateRequest) (*Evaluation, error) {
	if org != nil && org.PINEnabled && m.HasPIN() {
		if req.PIN == "" {
			return &Evaluation{Status: StatusPINRequired}, nil
		}
		if err := s.pin.Verify(m, req.PIN); err != nil {
			return nil, err
		}
	}

	if !s.Enforced(org, m) {
		return &Evaluation{Status: StatusOK}, nil
	}

	if org != nil && org.TrustedDevicesEnabled && req.DeviceHash != "" &&
		s.trusted.IsTrusted(org.ID, m.ID, req.DeviceHash) {
		s.audit.Emit(audit.Event{
			OrganizationID: m.OrganizationID,
			Action:         audit.ActionTwoFABypassed,
			ActorKind:      audit.ActorMember,
			ActorID:        m.ID,
			Success:        true,
			Detail:         "trusted device registry match",
		})
		return &Evaluation{Status: StatusOK}, nil
	}

	if req.RememberToken != "" {
		if claims, err := s.jwt.ValidateRememberToken(req.RememberToken); err == nil &&
			claims.MemberID == m.ID && claims.Fingerprint == req.DeviceHash {
			s.audit.Emit(audit.Event{
				OrganizationID: m.OrganizationID,
				Action:         audit.ActionTwoFABypassed,
				ActorKind:      audit.ActorMember,
				ActorID:        m.ID,
				Success:        true,
				Detail:         "remember-device token match",
			})
			return &Evaluation{Status: StatusOK}, nil
		}
		// Any mismatch or verification failure falls through to a fresh
		// challenge.
	}

	token, err := s.jwt.GenerateChallengeToken(m.ID, "", "", s.config.TwoFA.OTPExpiry)
	if err != nil {
		return nil, err
	}

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionTwoFAChallenge,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Success:        true,
	})

	return &Evaluation{Status: StatusChallengeRequired, ChallengeToken: token}, nil
}

// InitOTP generates a 6-digit code for the email or SMS channel, embeds its
// salted hash in a fresh challenge token and dispatches the raw code
// out-of-band. An empty channel falls back to the member's stored preference.
func (s *Service) InitOTP(m *member.Member, channel string) (string, error) {
	if channel == "" {
		channel = m.TwoFAChannel
	}
	if channel != member.ChannelEmail && channel != member.ChannelSMS {
		return "", ErrUnsupportedChannel
	}

	code, err := generateOTPCode()
	if err != nil {
		return "", err
	}

	token, err := s.jwt.GenerateChallengeToken(m.ID, otpHash(channel, m.ID, code), channel, s.config.TwoFA.OTPExpiry)
	if err != nil {
		return "", err
	}

	switch channel {
	case member.ChannelEmail:
		if s.mailer == nil {
			return "", fmt.Errorf("mail service not configured")
		}
		if err := s.mailer.SendOTPCode(m.Email, code, s.config.TwoFA.OTPExpiry); err != nil {
			return "", err
		}
	case member.ChannelSMS:
		if err := s.sms.SendOTPCode(m.PhoneNumber, code); err != nil {
			return "", err
		}
	}

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionOTPDispatched,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Success:        true,
		Detail:         "channel: " + channel,
	})

	return token, nil
}

// ChallengeMember resolves the member behind a pending challenge token
// without consuming it, so a new code can be dispatched mid-challenge.
func (s *Service) ChallengeMember(challengeToken string) (*member.Member, error) {
	claims, err := s.jwt.ValidateChallengeToken(challengeToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, ErrChallengeExpired
		}
		return nil, ErrChallengeInvalid
	}

	var m member.Member
	if err := s.db.First(&m, claims.MemberID).Error; err != nil {
		return nil, ErrChallengeInvalid
	}

	return &m, nil
}

// Verify consumes a challenge token. The token authorizes exactly this one
// verification; the secondary check (TOTP or OTP-hash compare) must still
// succeed.
func (s *Service) Verify(challengeToken, code, channel string) (*member.Member, error) {
	claims, err := s.jwt.ValidateChallengeToken(challengeToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, ErrChallengeExpired
		}
		return nil, ErrChallengeInvalid
	}

	var m member.Member
	if err := s.db.First(&m, claims.MemberID).Error; err != nil {
		return nil, ErrChallengeInvalid
	}

	if channel == "" {
		channel = claims.Channel
	}
	if channel == "" {
		channel = m.TwoFAChannel
	}
	if channel == "" {
		channel = member.ChannelTOTP
	}

	switch channel {
	case member.ChannelTOTP:
		if err := s.verifyTOTP(&m, code); err != nil {
			if errors.Is(err, ErrInvalidCode) && s.consumeRecoveryCode(&m, code) {
				break
			}
			s.emitVerifyFailure(&m, channel)
			return nil, err
		}
	case member.ChannelEmail, member.ChannelSMS:
		if claims.OTPHash == "" {
			return nil, ErrChallengeInvalid
		}
		if !otpHashEqual(claims.OTPHash, otpHash(channel, m.ID, code)) {
			s.emitVerifyFailure(&m, channel)
			return nil, ErrInvalidCode
		}
	default:
		return nil, ErrUnsupportedChannel
	}

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionTwoFAVerified,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Success:        true,
		Detail:         "channel: " + channel,
	})

	return &m, nil
}

func (s *Service) verifyTOTP(m *member.Member, code string) error {
	if !m.TwoFAEnabled || m.TwoFASecret == "" {
		return ErrNotEnrolled
	}

	secret, err := s.codec.Decrypt(m.TwoFASecret)
	if err != nil {
		// A tag mismatch is a hard failure, never a fallback.
		if s.logger != nil {
			s.logger.Error("failed to decrypt TOTP secret",
				zap.Error(err),
				zap.Uint("member_id", m.ID))
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		cutoff := time.Now().Unix() - 90
		var existing UsedCode
		if err := tx.Where("member_id = ? AND code = ? AND used_at > ?", m.ID, code, cutoff).First(&existing).Error; err == nil {
			return ErrCodeAlreadyUsed
		}

		if !totp.Validate(code, secret) {
			return ErrInvalidCode
		}

		used := &UsedCode{
			MemberID: m.ID,
			Code:     code,
			UsedAt:   time.Now().Unix(),
		}
		if err := tx.Create(used).Error; err != nil {
			return fmt.Errorf("failed to store used code: %w", err)
		}

		return nil
	})
}

// InitSetup generates a new TOTP secret, stores it encrypted and disabled,
// and returns the plaintext secret plus provisioning URI for the
// authenticator app.
func (s *Service) InitSetup(m *member.Member) (*SetupData, error) {
	if m.TwoFAEnabled {
		return nil, ErrAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.TwoFA.Issuer,
		AccountName: m.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	encrypted, err := s.codec.Encrypt(key.Secret())
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(m).Updates(map[string]any{
		"two_fa_secret":  encrypted,
		"two_fa_enabled": false,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to store TOTP secret: %w", err)
	}
	m.TwoFASecret = encrypted
	m.TwoFAEnabled = false

	return &SetupData{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// ConfirmSetup enables the second factor once a submitted code verifies
// against the pending secret, and returns the plaintext recovery codes
// exactly once.
func (s *Service) ConfirmSetup(m *member.Member, code string) ([]string, error) {
	if m.TwoFAEnabled {
		return nil, ErrAlreadyEnabled
	}
	if m.TwoFASecret == "" {
		return nil, ErrSetupNotStarted
	}

	secret, err := s.codec.Decrypt(m.TwoFASecret)
	if err != nil {
		return nil, err
	}

	if !totp.Validate(code, secret) {
		return nil, ErrInvalidCode
	}

	codes := make([]string, 0, s.config.TwoFA.RecoveryCodeCount)
	hashes := make([]string, 0, s.config.TwoFA.RecoveryCodeCount)
	for range s.config.TwoFA.RecoveryCodeCount {
		rc, err := generateRecoveryCode()
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(rc), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash recovery code: %w", err)
		}
		codes = append(codes, rc)
		hashes = append(hashes, string(hash))
	}

	now := time.Now()
	channel := m.TwoFAChannel
	if channel == "" {
		channel = member.ChannelTOTP
	}

	if err := s.db.Model(m).Updates(map[string]any{
		"two_fa_enabled":       true,
		"two_fa_confirmed_at":  now,
		"two_fa_channel":       channel,
		"recovery_code_hashes": strings.Join(hashes, ","),
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to enable two-factor authentication: %w", err)
	}
	m.TwoFAEnabled = true
	m.TwoFAConfirmedAt = &now
	m.TwoFAChannel = channel
	m.RecoveryCodeHashes = strings.Join(hashes, ",")

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionTwoFAEnabled,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Success:        true,
	})

	return codes, nil
}

// Disable turns the second factor off, accepting either a valid current TOTP
// code or an unused recovery code.
func (s *Service) Disable(m *member.Member, code string) error {
	if !m.TwoFAEnabled {
		return ErrNotEnrolled
	}

	if err := s.verifyTOTP(m, code); err != nil {
		if !s.consumeRecoveryCode(m, code) {
			return ErrInvalidCode
		}
	}

	if err := s.db.Model(m).Updates(map[string]any{
		"two_fa_secret":        "",
		"two_fa_enabled":       false,
		"two_fa_confirmed_at":  nil,
		"two_fa_channel":       "",
		"recovery_code_hashes": "",
	}).Error; err != nil {
		return fmt.Errorf("failed to disable two-factor authentication: %w", err)
	}
	m.TwoFASecret = ""
	m.TwoFAEnabled = false
	m.TwoFAConfirmedAt = nil
	m.TwoFAChannel = ""
	m.RecoveryCodeHashes = ""

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionTwoFADisabled,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Success:        true,
	})

	return nil
}

// MintRememberToken issues the bearer credential that lets this device skip
// the second factor on future logins. Lifetime comes from the organization
// when configured, else from global config.
func (s *Service) MintRememberToken(org *member.Organization, m *member.Member, deviceHash string) (string, time.Duration, error) {
	days := s.config.TwoFA.RememberDeviceDays
	if org != nil && org.RememberDeviceDays > 0 {
		days = org.RememberDeviceDays
	}
	lifetime := time.Duration(days) * 24 * time.Hour

	token, err := s.jwt.GenerateRememberToken(m.ID, deviceHash, lifetime)
	if err != nil {
		return "", 0, err
	}

	return token, lifetime, nil
}

// RememberLifetime exposes the configured remember-device lifetime for a
// tenant without minting a token.
func (s *Service) RememberLifetime(org *member.Organization) time.Duration {
	days := s.config.TwoFA.RememberDeviceDays
	if org != nil && org.RememberDeviceDays > 0 {
		days = org.RememberDeviceDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// consumeRecoveryCode burns a matching single-use recovery code. Returns
// false when no stored hash matches.
func (s *Service) consumeRecoveryCode(m *member.Member, code string) bool {
	if m.RecoveryCodeHashes == "" || code == "" {
		return false
	}

	hashes := strings.Split(m.RecoveryCodeHashes, ",")
	for i, hash := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil {
			remaining := append(hashes[:i:i], hashes[i+1:]...)
			joined := strings.Join(remaining, ",")
			if err := s.db.Model(m).Update("recovery_code_hashes", joined).Error; err != nil {
				if s.logger != nil {
					s.logger.Error("failed to burn recovery code",
						zap.Error(err),
						zap.Uint("member_id", m.ID))
				}
				return false
			}
			m.RecoveryCodeHashes = joined
			return true
		}
	}

	return false
}

func (s *Service) emitVerifyFailure(m *member.Member, channel string) {
	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionTwoFAFailed,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Detail:         "channel: " + channel,
	})
}
