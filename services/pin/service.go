package pin

import (
	"errors"
	"fmt"
	"time"

	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/logging"
	"github.com/clubops/memberauth/services/member"
	"github.com/clubops/memberauth/services/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidPIN    = errors.New("invalid PIN")
	ErrPINLocked     = errors.New("PIN temporarily locked")
	ErrPINNotSet     = errors.New("no PIN configured")
	ErrNotAuthorized = errors.New("not authorized to reset PIN")
)

// LockedError reports the remaining PIN lockout.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("PIN locked, try again in %d minutes", e.RemainingMinutes())
}

func (e *LockedError) Is(target error) bool {
	return target == ErrPINLocked
}

func (e *LockedError) RemainingMinutes() int {
	remaining := time.Until(e.Until)
	if remaining <= 0 {
		return 0
	}
	minutes := int(remaining.Minutes())
	if remaining%time.Minute > 0 {
		minutes++
	}
	return minutes
}

// AttemptsError is an invalid-PIN failure carrying the attempts left before
// lockout.
type AttemptsError struct {
	Remaining int
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("invalid PIN, %d attempts remaining", e.Remaining)
}

func (e *AttemptsError) Is(target error) bool {
	return target == ErrInvalidPIN
}

// Service implements the short-numeric-secret verification path with its own
// lockout counter, independent of the login lockout.
type Service struct {
	config  *config.Config
	db      *gorm.DB
	logger  *logging.Service
	audit   *audit.Service
	limiter *ratelimit.Limiter
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service, auditSvc *audit.Service, limiter *ratelimit.Limiter) *Service {
	return &Service{
		config:  cfg,
		db:      db,
		logger:  logger,
		audit:   auditSvc,
		limiter: limiter,
	}
}

// Verify checks the supplied PIN. An in-effect lockout fails immediately
// without consuming an attempt.
func (s *Service) Verify(m *member.Member, pin string) error {
	if !m.HasPIN() {
		return ErrPINNotSet
	}

	if m.PINLockedUntil != nil && time.Now().Before(*m.PINLockedUntil) {
		s.audit.Emit(audit.Event{
			OrganizationID: m.OrganizationID,
			Action:         audit.ActionPINLocked,
			ActorKind:      audit.ActorMember,
			ActorID:        m.ID,
			Detail:         "PIN attempt during lockout window",
		})
		return &LockedError{Until: *m.PINLockedUntil}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(m.PINHash), []byte(pin)); err != nil {
		return s.recordFailedAttempt(m)
	}

	if m.PINAttempts > 0 || m.PINLockedUntil != nil {
		if err := s.db.Model(m).Updates(map[string]any{
			"pin_attempts":     0,
			"pin_locked_until": nil,
		}).Error; err != nil && s.logger != nil {
			s.logger.Error("failed to reset PIN attempt state",
				zap.Error(err),
				zap.Uint("member_id", m.ID))
		}
		m.PINAttempts = 0
		m.PINLockedUntil = nil
	}

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionPINVerified,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Success:        true,
	})

	return nil
}

func (s *Service) recordFailedAttempt(m *member.Member) error {
	m.PINAttempts++

	updates := map[string]any{"pin_attempts": m.PINAttempts}

	if m.PINAttempts >= s.config.PIN.MaxAttempts {
		until := time.Now().Add(s.config.PIN.LockoutDuration)
		m.PINLockedUntil = &until
		updates["pin_locked_until"] = until
	}

	if err := s.db.Model(m).Updates(updates).Error; err != nil && s.logger != nil {
		s.logger.Error("failed to persist PIN attempt state",
			zap.Error(err),
			zap.Uint("member_id", m.ID))
	}

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionPINFailed,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Detail:         fmt.Sprintf("PIN mismatch, attempt %d", m.PINAttempts),
	})

	if m.PINLockedUntil != nil {
		return &LockedError{Until: *m.PINLockedUntil}
	}

	return &AttemptsError{Remaining: s.config.PIN.MaxAttempts - m.PINAttempts}
}

// Set creates or changes the PIN. Changing requires the current PIN; setting
// the first PIN does not.
func (s *Service) Set(m *member.Member, currentPIN, newPIN string) error {
	if m.HasPIN() {
		if err := s.Verify(m, currentPIN); err != nil {
			return err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), s.config.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}

	now := time.Now()
	if err := s.db.Model(m).Updates(map[string]any{
		"pin_hash":           string(hash),
		"pin_set_at":         now,
		"pin_attempts":       0,
		"pin_locked_until":   nil,
		"pin_reset_required": false,
	}).Error; err != nil {
		return fmt.Errorf("failed to store PIN: %w", err)
	}

	m.PINHash = string(hash)
	m.PINSetAt = &now
	m.PINAttempts = 0
	m.PINLockedUntil = nil
	m.PINResetRequired = false

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionPINChanged,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Success:        true,
	})

	return nil
}

// Remove deletes the PIN; the current PIN must verify first.
func (s *Service) Remove(m *member.Member, currentPIN string) error {
	if !m.HasPIN() {
		return ErrPINNotSet
	}

	if err := s.Verify(m, currentPIN); err != nil {
		return err
	}

	if err := s.db.Model(m).Updates(map[string]any{
		"pin_hash":           "",
		"pin_set_at":         nil,
		"pin_attempts":       0,
		"pin_locked_until":   nil,
		"pin_reset_required": false,
	}).Error; err != nil {
		return fmt.Errorf("failed to remove PIN: %w", err)
	}

	m.PINHash = ""
	m.PINSetAt = nil

	s.audit.Emit(audit.Event{
		OrganizationID: m.OrganizationID,
		Action:         audit.ActionPINRemoved,
		ActorKind:      audit.ActorMember,
		ActorID:        m.ID,
		Success:        true,
	})

	return nil
}

// AdminReset clears another member's PIN without current-PIN verification.
// Superusers act across tenants; administrators only within their own
// organization. The reset is rate limited and marks the member for a forced
// PIN change at next use.
func (s *Service) AdminReset(actor *member.Member, target *member.Member) error {
	switch actor.Role {
	case member.RoleSuperuser:
	case member.RoleAdministrator:
		if actor.OrganizationID != target.OrganizationID {
			return ErrNotAuthorized
		}
	default:
		return ErrNotAuthorized
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(audit.ActorManager, actor.ID, audit.ActionPINReset); err != nil {
			return err
		}
	}

	if err := s.db.Model(target).Updates(map[string]any{
		"pin_hash":           "",
		"pin_set_at":         nil,
		"pin_attempts":       0,
		"pin_locked_until":   nil,
		"pin_reset_required": true,
	}).Error; err != nil {
		return fmt.Errorf("failed to reset PIN: %w", err)
	}

	target.PINHash = ""
	target.PINSetAt = nil
	target.PINAttempts = 0
	target.PINLockedUntil = nil
	target.PINResetRequired = true

	s.audit.Emit(audit.Event{
		OrganizationID: target.OrganizationID,
		Action:         audit.ActionPINReset,
		ActorKind:      audit.ActorManager,
		ActorID:        actor.ID,
		Success:        true,
		Detail:         fmt.Sprintf("PIN reset for member %d", target.ID),
	})

	return nil
}
