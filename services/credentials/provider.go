package credentials

import (
	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(cfg *config.Config, db *gorm.DB, logger *logging.Service, auditSvc *audit.Service) *Service {
	return NewService(cfg, db, logger, auditSvc, ExpiryValidator{})
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
