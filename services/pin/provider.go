package pin

import (
	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/logging"
	"github.com/clubops/memberauth/services/ratelimit"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(cfg *config.Config, db *gorm.DB, logger *logging.Service, auditSvc *audit.Service, limiter *ratelimit.Limiter) *Service {
	return NewService(cfg, db, logger, auditSvc, limiter)
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
