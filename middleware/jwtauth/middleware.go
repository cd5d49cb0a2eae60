package jwtauth

import (
	"net/http"
	"strings"

	"github.com/clubops/memberauth/services/jwt"
	"github.com/labstack/echo/v4"
)

const (
	MemberIDKey = "_jwt_member_id"
	ClaimsKey   = "_jwt_claims"
)

// RequireAccessToken rejects requests that do not carry a valid bearer access
// token. Refresh, challenge and remember tokens are signed for other purposes
// and do not pass.
func RequireAccessToken(jwtService *jwt.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access token required")
			}

			claims, err := jwtService.ValidateAccessToken(tokenString)
			if err != nil {
				switch err {
				case jwt.ErrExpiredToken:
					return echo.NewHTTPError(http.StatusUnauthorized, "Access token has expired")
				case jwt.ErrMalformedToken:
					return echo.NewHTTPError(http.StatusUnauthorized, "Malformed access token")
				case jwt.ErrInvalidSignature:
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid access token signature")
				case jwt.ErrWrongTokenType:
					return echo.NewHTTPError(http.StatusUnauthorized, "Token is not an access token")
				default:
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid access token")
				}
			}

			c.Set(MemberIDKey, claims.MemberID)
			c.Set(ClaimsKey, claims)

			return next(c)
		}
	}
}

func GetMemberID(c echo.Context) uint {
	if memberID, ok := c.Get(MemberIDKey).(uint); ok {
		return memberID
	}
	return 0
}

func GetClaims(c echo.Context) *jwt.Claims {
	if claims, ok := c.Get(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}
