package trusteddevice

import (
	"errors"
	"fmt"
	"time"

	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrDeviceNotFound = errors.New("trusted device not found")

type Service struct {
	db     *gorm.DB
	logger *logging.Service
	audit  *audit.Service
}

func NewService(db *gorm.DB, logger *logging.Service, auditSvc *audit.Service) *Service {
	return &Service{
		db:     db,
		logger: logger,
		audit:  auditSvc,
	}
}

// Trust records a device for the (organization, member, deviceHash) tuple.
// Re-trusting an already-known device extends its expiry instead of creating
// a duplicate row.
func (s *Service) Trust(organizationID, memberID uint, deviceHash, name string, lifetime time.Duration) (*TrustedDevice, error) {
	expiresAt := time.Now().Add(lifetime)

	var existing TrustedDevice
	err := s.db.Where("organization_id = ? AND member_id = ? AND device_hash = ?", organizationID, memberID, deviceHash).
		First(&existing).Error
	if err == nil {
		existing.Name = name
		existing.ExpiresAt = expiresAt
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to extend trusted device: %w", err)
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check trusted device: %w", err)
	}

	device := TrustedDevice{
		OrganizationID: organizationID,
		MemberID:       memberID,
		DeviceHash:     deviceHash,
		Name:           name,
		ExpiresAt:      expiresAt,
	}

	if err := s.db.Create(&device).Error; err != nil {
		return nil, fmt.Errorf("failed to store trusted device: %w", err)
	}

	s.audit.Emit(audit.Event{
		OrganizationID: organizationID,
		Action:         audit.ActionDeviceTrusted,
		ActorKind:      audit.ActorMember,
		ActorID:        memberID,
		Success:        true,
		Detail:         "device trusted: " + name,
	})

	return &device, nil
}

// IsTrusted reports whether a live grant exists for the tuple. Expired grants
// are swept on sight.
func (s *Service) IsTrusted(organizationID, memberID uint, deviceHash string) bool {
	var device TrustedDevice
	err := s.db.Where("organization_id = ? AND member_id = ? AND device_hash = ?", organizationID, memberID, deviceHash).
		First(&device).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && s.logger != nil {
			s.logger.Error("trusted device lookup failed", zap.Error(err))
		}
		return false
	}

	if time.Now().After(device.ExpiresAt) {
		if err := s.db.Delete(&device).Error; err != nil && s.logger != nil {
			s.logger.Warn("failed to delete expired trusted device",
				zap.Error(err),
				zap.Uint("device_id", device.ID))
		}
		return false
	}

	return true
}

func (s *Service) List(memberID uint) ([]TrustedDevice, error) {
	var devices []TrustedDevice
	err := s.db.Where("member_id = ? AND expires_at > ?", memberID, time.Now()).
		Order("created_at DESC").
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted devices: %w", err)
	}
	return devices, nil
}

func (s *Service) Revoke(memberID, deviceID uint) error {
	result := s.db.Where("id = ? AND member_id = ?", deviceID, memberID).Delete(&TrustedDevice{})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke trusted device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}

	s.audit.Emit(audit.Event{
		Action:    audit.ActionDeviceRevoked,
		ActorKind: audit.ActorMember,
		ActorID:   memberID,
		Success:   true,
	})

	return nil
}

func (s *Service) RevokeAllForMember(memberID uint) error {
	result := s.db.Where("member_id = ?", memberID).Delete(&TrustedDevice{})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke trusted devices: %w", result.Error)
	}
	return nil
}
