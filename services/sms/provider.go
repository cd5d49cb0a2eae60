package sms

import (
	"errors"

	"github.com/clubops/memberauth/config"
	"go.uber.org/fx"
)

var ErrProviderNotConfigured = errors.New("SMS provider not configured")

// Provider dispatches one-time codes over SMS. No real integration ships;
// deployments plug their gateway in here.
type Provider interface {
	SendOTPCode(phoneNumber, code string) error
}

// Disabled rejects every send with ErrProviderNotConfigured.
type Disabled struct{}

func (Disabled) SendOTPCode(string, string) error {
	return ErrProviderNotConfigured
}

func NewProvider(cfg *config.Config) Provider {
	// SMS_PROVIDER selects a gateway; none are bundled.
	return Disabled{}
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
