package ratelimit

import (
	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/logging"
	"go.uber.org/fx"
)

func NewProvider(cfg *config.Config, auditSvc *audit.Service, logger *logging.Service) *Limiter {
	return NewLimiter(cfg, NewMemoryStore(cfg.RateLimit.Window), auditSvc, logger)
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
