package twofa

import (
	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/jwt"
	"github.com/clubops/memberauth/services/logging"
	"github.com/clubops/memberauth/services/mail"
	"github.com/clubops/memberauth/services/pin"
	"github.com/clubops/memberauth/services/secrets"
	"github.com/clubops/memberauth/services/sms"
	"github.com/clubops/memberauth/services/trusteddevice"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideService(cfg *config.Config, db *gorm.DB, logger *logging.Service, auditSvc *audit.Service, codec *secrets.Codec,
	jwtSvc *jwt.Service, pinSvc *pin.Service, trustedSvc *trusteddevice.Service, mailer *mail.Service, smsProvider sms.Provider) *Service {
	return NewService(cfg, db, logger, auditSvc, codec, jwtSvc, pinSvc, trustedSvc, mailer, smsProvider)
}

var Module = fx.Options(
	fx.Provide(ProvideService),
)
