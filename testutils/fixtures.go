package testutils

import (
	"time"

	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/member"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "Test App",
			URL:         "http://localhost:8080",
			Environment: "test",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		JWT: config.JWTConfig{
			AccessSecret:  "test-access-secret-32-chars-ok!!",
			RefreshSecret: "test-refresh-secret-32-chars-ok!",
			Issuer:        "test-issuer",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
		},
		Auth: config.AuthConfig{
			BcryptCost:             bcrypt.MinCost,
			MaxFailedLoginAttempts: 5,
			AccountLockoutDuration: 30 * time.Minute,
			FailedAttemptsReset:    15 * time.Minute,
			LoginDelay:             0,
			LockAdminAccounts:      false,
		},
		TwoFA: config.TwoFAConfig{
			FallbackSecret:     "test-fallback-secret",
			Issuer:             "Test App",
			OTPExpiry:          5 * time.Minute,
			RememberDeviceDays: 30,
			RecoveryCodeCount:  10,
		},
		PIN: config.PINConfig{
			MaxAttempts:     3,
			LockoutDuration: 15 * time.Minute,
		},
		RateLimit: config.RateLimitConfig{
			MaxActions: 5,
			Window:     15 * time.Minute,
		},
	}
}

var TestPasswords = struct {
	Valid string
	Wrong string
}{
	Valid: "correct horse battery staple",
	Wrong: "incorrect zebra battery staple",
}

// NewMember builds an active member with the given email and a bcrypt hash of
// TestPasswords.Valid, for direct insertion via gorm.
func NewMember(orgID uint, email string) *member.Member {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPasswords.Valid), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	return &member.Member{
		OrganizationID: orgID,
		Email:          email,
		PasswordHash:   string(hash),
		Role:           member.RoleMember,
		Status:         member.StatusActive,
	}
}

func NewOrganization(name string) *member.Organization {
	return &member.Organization{
		Name: name,
	}
}
