package main

import (
	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/database"
	"github.com/clubops/memberauth/handlers"
	"github.com/clubops/memberauth/server"
	"github.com/clubops/memberauth/services/audit"
	"github.com/clubops/memberauth/services/credentials"
	"github.com/clubops/memberauth/services/fingerprint"
	"github.com/clubops/memberauth/services/jwt"
	"github.com/clubops/memberauth/services/logging"
	"github.com/clubops/memberauth/services/mail"
	"github.com/clubops/memberauth/services/member"
	"github.com/clubops/memberauth/services/pin"
	"github.com/clubops/memberauth/services/ratelimit"
	"github.com/clubops/memberauth/services/refreshtoken"
	"github.com/clubops/memberauth/services/secrets"
	"github.com/clubops/memberauth/services/sms"
	"github.com/clubops/memberauth/services/trusteddevice"
	"github.com/clubops/memberauth/services/twofa"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logging.Module,
		database.WithModelsOption(
			&member.Organization{},
			&member.Member{},
			&audit.Event{},
			&refreshtoken.RefreshToken{},
			&trusteddevice.TrustedDevice{},
			&twofa.UsedCode{},
		),
		database.Module,
		audit.Module,
		secrets.Module,
		fingerprint.Module,
		jwt.Module,
		ratelimit.Module,
		mail.Module,
		sms.Module,
		credentials.Module,
		pin.Module,
		trusteddevice.Module,
		twofa.Module,
		refreshtoken.Module,
		handlers.Module,
		server.Module,
	)

	app.Run()
}
