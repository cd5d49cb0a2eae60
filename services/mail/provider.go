package mail

import (
	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/logging"
	"go.uber.org/fx"
)

func NewProvider(cfg *config.Config, logger *logging.Service) (*Service, error) {
	return NewService(&cfg.Mail, logger)
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
