package credentials

import (
	"errors"
	"time"

	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/logging"
	"github.com/clubops/memberauth/services/member"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MembershipValidator is the external business-rule gate consulted after the
// password check. The default implementation rejects lapsed memberships.
type MembershipValidator interface {
	Validate(m *member.Member) error
}

type ExpiryValidator struct{}

func (ExpiryValidator) Validate(m *member.Member) error {
	if m.MembershipExpiresAt != nil && time.Now().After(*m.MembershipExpiresAt) {
		return ErrMembershipInvalid
	}
	return nil
}

type Service struct {
	config    *config.Config
	db        *gorm.DB
	logger    *logging.Service
	audit     *audit.Service
	validator MembershipValidator
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service, auditSvc *audit.Service, validator MembershipValidator) *Service {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}
	if validator == nil {
		validator = ExpiryValidator{}
	}

	return &Service{
		config:    cfg,
		db:        db,
		logger:    logger,
		audit:     auditSvc,
		validator: validator,
	}
}

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password hashing failed", zap.Error(err))
		}
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Authenticate verifies an email/password pair and enforces failed-attempt
// counting and time-boxed lockout. The artificial delay equalizes response
// timing between unknown email and wrong password; it must not be skipped or
// timing-based user enumeration becomes possible.
func (s *Service) Authenticate(email, password, clientIP string) (*member.Member, error) {
	var m member.Member
	if err := s.db.Where("email = ?", email).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.loginDelay()
			s.audit.Emit(audit.Event{
				Action:    audit.ActionLoginUnknownEmail,
				ActorKind: audit.ActorMember,
				ClientIP:  clientIP,
				Detail:    "no account for supplied email",
			})
			return nil, ErrInvalidCredentials
		}
		if s.logger != nil {
			s.logger.Error("member lookup failed", zap.Error(err))
		}
		return nil, err
	}

	if err := s.validator.Validate(&m); err != nil {
		s.audit.Emit(audit.Event{
			OrganizationID: m.OrganizationID,
			Action:         audit.ActionLoginMembership,
			ActorKind:      audit.ActorMember,
			ActorID:        m.ID,
			ClientIP:       clientIP,
			Detail:         "membership validity check failed",
		})
		return nil, ErrMembershipInvalid
	}

	// Administrators and superusers bypass account-status gating.
	if !m.IsPrivileged() && m.Status != member.StatusActive {
		s.audit.Emit(audit.Event{
			OrganizationID: m.OrganizationID,
			Action:         audit.ActionLoginInactive,
			ActorKind:      audit.ActorMember,
			ActorID:        m.ID,
			ClientIP:       clientIP,
			Detail:         "account status: " + m.Status,
		})
		return nil, ErrAccountInactive
	}

	if m.LockedUntil != nil && time.Now().Before(*m.LockedUntil) {
		s.audit.Emit(audit.Event{
			OrganizationID: m.OrganizationID,
			Action:         audit.ActionLoginLocked,
			ActorKind:      audit.ActorMember,
			ActorID:        m.ID,
			ClientIP:       clientIP,
			Detail:         "login attempt during lockout window",
		})
		return nil, &LockedError{Until: *m.LockedUntil}
	}

	if err := s.VerifyPassword(m.PasswordHash, password); err != nil {
		return nil, s.recordFailedAttempt(&m, clientIP)
	}

	if m.FailedLoginAttempts > 0 || m.LastFailedLogin != nil || m.LockedUntil != nil {
		if err := s.db.Model(&m).Updates(map[string]any{
			"failed_login_attempts": 0,
			"last_failed_login":     nil,
			"locked_until":          nil,
		}).Error; err != nil && s.logger != nil {
			s.logger.Error("failed to reset login failure state",
				zap.Error(err),
				zap.Uint("member_id", m.ID))
		}
		m.FailedLoginAttempts = 0
		m.LastFailedLogin = nil
		m.LockedUntil = nil
	}

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionLoginSuccess,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Success:        true,
		ClientIP:       clientIP,
	})

	return &m, nil
}

func (s *Service) recordFailedAttempt(m *member.Member, clientIP string) error {
	now := time.Now()

	// A stale failure history does not count against the current window.
	if m.LastFailedLogin != nil && now.Sub(*m.LastFailedLogin) > s.config.Auth.FailedAttemptsReset {
		m.FailedLoginAttempts = 0
	}

	m.FailedLoginAttempts++
	m.LastFailedLogin = &now

	updates := map[string]any{
		"failed_login_attempts": m.FailedLoginAttempts,
		"last_failed_login":     now,
	}

	if m.FailedLoginAttempts >= s.config.Auth.MaxFailedLoginAttempts {
		if m.IsPrivileged() && !s.config.Auth.LockAdminAccounts {
			if s.logger != nil {
				s.logger.Warn("privileged account reached lockout threshold but admin lockout is disabled",
					zap.Uint("member_id", m.ID),
					zap.Int("failed_attempts", m.FailedLoginAttempts))
			}
			s.audit.Emit(audit.Event{
				OrganizationID: m.OrganizationID,
				Action:         audit.ActionAdminLockSkipped,
				ActorKind:      audit.ActorMember,
				ActorID:        m.ID,
				ClientIP:       clientIP,
				Detail:         "lockout threshold reached, admin exemption applied",
			})
		} else {
			until := now.Add(s.config.Auth.AccountLockoutDuration)
			m.LockedUntil = &until
			updates["locked_until"] = until
		}
	}

	if err := s.db.Model(m).Updates(updates).Error; err != nil && s.logger != nil {
		s.logger.Error("failed to persist login failure state",
			zap.Error(err),
			zap.Uint("member_id", m.ID))
	}

	s.loginDelay()

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionLoginFailed,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		ClientIP:       clientIP,
		Detail:         "password mismatch",
	})

	remaining := s.config.Auth.MaxFailedLoginAttempts - m.FailedLoginAttempts
	if remaining < 0 {
		remaining = 0
	}
	return &AttemptsError{Remaining: remaining}
}

func (s *Service) loginDelay() {
	if s.config.Auth.LoginDelay > 0 {
		time.Sleep(s.config.Auth.LoginDelay)
	}
}
