package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"MEMBERAUTH_APP_"`
	Server    ServerConfig    `envPrefix:"MEMBERAUTH_SERVER_"`
	Log       LogConfig       `envPrefix:"MEMBERAUTH_LOG_"`
	Database  DatabaseConfig  `envPrefix:"MEMBERAUTH_DB_"`
	JWT       JWTConfig       `envPrefix:"MEMBERAUTH_JWT_"`
	Auth      AuthConfig      `envPrefix:"MEMBERAUTH_AUTH_"`
	TwoFA     TwoFAConfig     `envPrefix:"MEMBERAUTH_2FA_"`
	PIN       PINConfig       `envPrefix:"MEMBERAUTH_PIN_"`
	RateLimit RateLimitConfig `envPrefix:"MEMBERAUTH_RATELIMIT_"`
	Mail      MailConfig      `envPrefix:"MEMBERAUTH_MAIL_"`
	SMS       SMSConfig       `envPrefix:"MEMBERAUTH_SMS_"`
}

type AppConfig struct {
	Name        string `env:"NAME" envDefault:"memberauth"`
	URL         string `env:"URL" envDefault:"http://localhost:8080"`
	Environment string `env:"ENV" envDefault:"development"`
}

func (c AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

type ServerConfig struct {
	Host string `env:"HOST" envDefault:"localhost"`
	Port string `env:"PORT" envDefault:"8080"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"memberauth.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

// JWTConfig carries distinct signing secrets for access and refresh tokens so
// a leaked access secret cannot be used to mint long-lived refresh tokens.
type JWTConfig struct {
	AccessSecret  string        `env:"ACCESS_SECRET"`
	RefreshSecret string        `env:"REFRESH_SECRET"`
	Issuer        string        `env:"ISSUER" envDefault:"memberauth"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"168h"`
}

type AuthConfig struct {
	BcryptCost             int           `env:"BCRYPT_COST" envDefault:"12"`
	MaxFailedLoginAttempts int           `env:"MAX_FAILED_ATTEMPTS" envDefault:"5"`
	AccountLockoutDuration time.Duration `env:"LOCKOUT_DURATION" envDefault:"30m"`
	FailedAttemptsReset    time.Duration `env:"FAILED_ATTEMPTS_RESET" envDefault:"15m"`
	LoginDelay             time.Duration `env:"LOGIN_DELAY" envDefault:"500ms"`
	LockAdminAccounts      bool          `env:"LOCK_ADMIN_ACCOUNTS" envDefault:"false"`
}

type TwoFAConfig struct {
	// EncryptionKey is a hex or base64 encoded 32-byte key for the TOTP
	// secret codec. When empty the codec derives a key by hashing
	// FallbackSecret.
	EncryptionKey      string        `env:"ENCRYPTION_KEY"`
	FallbackSecret     string        `env:"FALLBACK_SECRET"`
	Issuer             string        `env:"ISSUER" envDefault:"memberauth"`
	Required           bool          `env:"REQUIRED" envDefault:"false"`
	RequiredRoles      []string      `env:"REQUIRED_ROLES" envSeparator:","`
	OTPExpiry          time.Duration `env:"OTP_EXPIRY" envDefault:"300s"`
	RememberDeviceDays int           `env:"REMEMBER_DEVICE_DAYS" envDefault:"30"`
	RecoveryCodeCount  int           `env:"RECOVERY_CODE_COUNT" envDefault:"10"`
}

type PINConfig struct {
	MaxAttempts     int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	LockoutDuration time.Duration `env:"LOCKOUT_DURATION" envDefault:"15m"`
}

type RateLimitConfig struct {
	MaxActions int           `env:"MAX_ACTIONS" envDefault:"5"`
	Window     time.Duration `env:"WINDOW" envDefault:"15m"`
}

type MailConfig struct {
	Host        string `env:"HOST"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME" envDefault:"memberauth"`
}

type SMSConfig struct {
	Provider string `env:"PROVIDER"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
