package refreshtoken

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/jwt"
	"github.com/clubops/memberauth/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrRefreshTokenInvalid  = errors.New("invalid refresh token")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrFingerprintMismatch  = errors.New("refresh token device mismatch")
	ErrTokenIssuanceFailure = errors.New("failed to issue tokens")
)

type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
	audit  *audit.Service
	jwt    *jwt.Service
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service, auditSvc *audit.Service, jwtSvc *jwt.Service) *Service {
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
		audit:  auditSvc,
		jwt:    jwtSvc,
	}
}

// Issue mints an access/refresh pair bound to the device fingerprint and
// persists the refresh half. Other live tokens for the same member are left
// alone (multi-device sessions are a feature); only expired rows are swept.
func (s *Service) Issue(memberID uint, role, fingerprint string) (*TokenPair, error) {
	s.sweepExpired(memberID)

	accessToken, err := s.jwt.GenerateAccessToken(memberID, role, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenIssuanceFailure, err)
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(memberID, role, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenIssuanceFailure, err)
	}

	expiresAt := time.Now().Add(s.jwt.RefreshExpiry())
	row := RefreshToken{
		MemberID:  memberID,
		TokenHash: s.hashToken(refreshToken),
		ExpiresAt: expiresAt,
	}

	if err := s.db.Create(&row).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to store refresh token",
				zap.Error(err),
				zap.Uint("member_id", memberID))
		}
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.audit.Emit(audit.Event{
		Action:    audit.ActionTokenIssued,
		ActorKind: audit.ActorMember,
		ActorID:   memberID,
		Success:   true,
	})

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// Rotate exchanges a refresh token for a new pair. Rotation is a delete of
// the old row followed by an insert of the new one, never an update in place:
// two concurrent rotations then race on row existence instead of colliding on
// a unique key. A signature-valid token whose row is missing is treated as a
// recoverable race (already rotated by a concurrent request, or a stale
// device) and answered with a fresh pair rather than an error.
func (s *Service) Rotate(tokenString, currentFingerprint string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, ErrRefreshTokenExpired
		}
		return nil, ErrRefreshTokenInvalid
	}

	if claims.Fingerprint != "" && currentFingerprint != "" && claims.Fingerprint != currentFingerprint {
		if s.config.App.IsProduction() {
			if s.logger != nil {
				s.logger.Warn("refresh token fingerprint mismatch",
					zap.Uint("member_id", claims.MemberID))
			}
			return nil, ErrFingerprintMismatch
		}
		if s.logger != nil {
			s.logger.Warn("refresh token fingerprint mismatch tolerated outside production",
				zap.Uint("member_id", claims.MemberID))
		}
	}

	var row RefreshToken
	err = s.db.Where("token_hash = ? AND member_id = ?", s.hashToken(tokenString), claims.MemberID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			pair, issueErr := s.Issue(claims.MemberID, claims.Role, currentFingerprint)
			if issueErr != nil {
				return nil, issueErr
			}
			s.audit.Emit(audit.Event{
				Action:    audit.ActionTokenReissued,
				ActorKind: audit.ActorMember,
				ActorID:   claims.MemberID,
				Success:   true,
				Detail:    "token row missing, re-issued after concurrent rotation",
			})
			return pair, nil
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if time.Now().After(row.ExpiresAt) {
		if err := s.db.Delete(&row).Error; err != nil && s.logger != nil {
			s.logger.Warn("failed to delete expired refresh token",
				zap.Error(err),
				zap.Uint("token_id", row.ID))
		}
		s.audit.Emit(audit.Event{
			Action:    audit.ActionTokenExpired,
			ActorKind: audit.ActorMember,
			ActorID:   claims.MemberID,
			Detail:    "refresh attempted with expired token",
		})
		return nil, ErrRefreshTokenExpired
	}

	if err := s.db.Delete(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to delete rotated refresh token: %w", err)
	}

	pair, err := s.Issue(claims.MemberID, claims.Role, currentFingerprint)
	if err != nil {
		return nil, err
	}

	s.audit.Emit(audit.Event{
		Action:    audit.ActionTokenRotated,
		ActorKind: audit.ActorMember,
		ActorID:   claims.MemberID,
		Success:   true,
	})

	return pair, nil
}

// Revoke deletes the row backing the presented token. Deleting a token that
// no longer exists is a successful no-op: logout must be idempotent.
func (s *Service) Revoke(tokenString string) error {
	result := s.db.Where("token_hash = ?", s.hashToken(tokenString)).Delete(&RefreshToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		if claims, err := s.jwt.ValidateRefreshToken(tokenString); err == nil {
			s.audit.Emit(audit.Event{
				Action:    audit.ActionTokenRevoked,
				ActorKind: audit.ActorMember,
				ActorID:   claims.MemberID,
				Success:   true,
			})
		}
	}

	return nil
}

func (s *Service) RevokeAllForMember(memberID uint) error {
	result := s.db.Where("member_id = ?", memberID).Delete(&RefreshToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke member refresh tokens: %w", result.Error)
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Info("revoked all refresh tokens for member",
			zap.Uint("member_id", memberID),
			zap.Int64("count", result.RowsAffected))
	}

	return nil
}

// LiveTokenCount reports non-expired rows for a member.
func (s *Service) LiveTokenCount(memberID uint) (int64, error) {
	var count int64
	err := s.db.Model(&RefreshToken{}).
		Where("member_id = ? AND expires_at > ?", memberID, time.Now()).
		Count(&count).Error
	return count, err
}

func (s *Service) sweepExpired(memberID uint) {
	result := s.db.Where("member_id = ? AND expires_at < ?", memberID, time.Now()).Delete(&RefreshToken{})
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Warn("failed to sweep expired refresh tokens",
				zap.Error(result.Error),
				zap.Uint("member_id", memberID))
		}
		return
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Debug("swept expired refresh tokens",
			zap.Uint("member_id", memberID),
			zap.Int64("count", result.RowsAffected))
	}
}

func (s *Service) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
