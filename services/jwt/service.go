package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrWrongTokenType   = errors.New("unexpected token type")
)

// Token types minted by this service.
const (
	TypeAccess    = "access"
	TypeRefresh   = "refresh"
	TypeChallenge = "twofa_challenge"
	TypeRemember  = "remember_device"
)

type Claims struct {
	MemberID    uint   `json:"member_id"`
	Role        string `json:"role,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	TokenType   string `json:"token_type"`
	// OTPHash is the salted hash of an email/SMS one-time code, embedded in
	// challenge tokens so the raw code is never persisted server-side.
	OTPHash string `json:"otp_hash,omitempty"`
	Channel string `json:"channel,omitempty"`
	jwt.RegisteredClaims
}

type Service struct {
	config *config.Config
	logger *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
	}
}

func (s *Service) AccessExpirySeconds() int {
	return int(s.config.JWT.AccessExpiry.Seconds())
}

func (s *Service) RefreshExpiry() time.Duration {
	return s.config.JWT.RefreshExpiry
}

func (s *Service) GenerateAccessToken(memberID uint, role, fingerprint string) (string, error) {
	claims := s.newClaims(memberID, TypeAccess, s.config.JWT.AccessExpiry)
	claims.Role = role
	claims.Fingerprint = fingerprint
	return s.sign(claims, s.config.JWT.AccessSecret)
}

func (s *Service) GenerateRefreshToken(memberID uint, role, fingerprint string) (string, error) {
	claims := s.newClaims(memberID, TypeRefresh, s.config.JWT.RefreshExpiry)
	claims.Role = role
	claims.Fingerprint = fingerprint
	return s.sign(claims, s.config.JWT.RefreshSecret)
}

func (s *Service) GenerateChallengeToken(memberID uint, otpHash, channel string, expiry time.Duration) (string, error) {
	claims := s.newClaims(memberID, TypeChallenge, expiry)
	claims.OTPHash = otpHash
	claims.Channel = channel
	return s.sign(claims, s.config.JWT.AccessSecret)
}

func (s *Service) GenerateRememberToken(memberID uint, fingerprint string, expiry time.Duration) (string, error) {
	claims := s.newClaims(memberID, TypeRemember, expiry)
	claims.Fingerprint = fingerprint
	return s.sign(claims, s.config.JWT.AccessSecret)
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.config.JWT.AccessSecret, TypeAccess)
}

func (s *Service) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.config.JWT.RefreshSecret, TypeRefresh)
}

func (s *Service) ValidateChallengeToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.config.JWT.AccessSecret, TypeChallenge)
}

func (s *Service) ValidateRememberToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.config.JWT.AccessSecret, TypeRemember)
}

func (s *Service) newClaims(memberID uint, tokenType string, expiry time.Duration) Claims {
	now := time.Now()
	jti := uuid.New().String()
	return Claims{
		MemberID:  memberID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.JWT.Issuer,
			Subject:   fmt.Sprintf("%d", memberID),
			Audience:  []string{s.config.JWT.Issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func (s *Service) sign(claims Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to sign token",
				zap.Error(err),
				zap.String("token_type", claims.TokenType))
		}
		return "", fmt.Errorf("failed to sign %s token: %w", claims.TokenType, err)
	}
	return tokenString, nil
}

func (s *Service) parse(tokenString, secret, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
		}
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		if s.logger != nil {
			s.logger.Warn("token validation failed", zap.Error(err))
		}

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != wantType {
		if s.logger != nil {
			s.logger.Warn("token type mismatch",
				zap.String("expected", wantType),
				zap.String("got", claims.TokenType))
		}
		return nil, ErrWrongTokenType
	}

	return claims, nil
}
