package trusteddevice

import (
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(db *gorm.DB, logger *logging.Service, auditSvc *audit.Service) *Service {
	return NewService(db, logger, auditSvc)
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
