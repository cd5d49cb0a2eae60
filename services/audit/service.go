package audit

import (
	"fmt"
	"time"

	"github.com/clubops/memberauth/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service records authentication decision points. Emission is fire-and-forget:
// a failure to persist an event must never abort the primary flow.
type Service struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

func (s *Service) Emit(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if s.logger != nil {
		s.logger.Info("audit event",
			zap.String("action", event.Action),
			zap.String("actor_kind", event.ActorKind),
			zap.Uint("actor_id", event.ActorID),
			zap.Uint("organization_id", event.OrganizationID),
			zap.Bool("success", event.Success),
			zap.String("detail", event.Detail))
	}

	if s.db == nil {
		return
	}

	if err := s.db.Create(&event).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to persist audit event",
				zap.Error(err),
				zap.String("action", event.Action))
		}
	}
}

// CountActions returns the number of persisted occurrences of action by the
// given actor since the cutoff. The privileged-action rate limiter uses this
// as its durable cross-check so limits survive process restarts.
func (s *Service) CountActions(actorKind string, actorID uint, action string, since time.Time) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("audit store not configured")
	}

	var count int64
	err := s.db.Model(&Event{}).
		Where("actor_kind = ? AND actor_id = ? AND action = ? AND created_at >= ?", actorKind, actorID, action, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}

	return int(count), nil
}
