package handlers

import (
	"github.com/clubops/memberauth/middleware/jwtauth"
	"github.com/clubops/memberauth/server"
	"github.com/clubops/memberauth/services/jwt"
)

// RegisterRoutes wires the public auth flow and the token-protected account
// management endpoints.
func RegisterRoutes(srv *server.Server, h *Handler, jwtSvc *jwt.Service) {
	auth := srv.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)

	twofa := srv.Group("/2fa")
	twofa.POST("/init-otp", h.InitOTP)
	twofa.POST("/verify", h.VerifyTwoFA)

	protected2fa := srv.Group("/2fa", jwtauth.RequireAccessToken(jwtSvc))
	protected2fa.POST("/init-setup", h.InitTwoFASetup)
	protected2fa.POST("/confirm-setup", h.ConfirmTwoFASetup)
	protected2fa.POST("/disable", h.DisableTwoFA)

	pinGroup := srv.Group("/pin", jwtauth.RequireAccessToken(jwtSvc))
	pinGroup.POST("", h.SetPIN)
	pinGroup.DELETE("", h.RemovePIN)

	admin := srv.Group("/admin", jwtauth.RequireAccessToken(jwtSvc))
	admin.POST("/members/:id/pin-reset", h.AdminResetPIN)

	devices := srv.Group("/devices", jwtauth.RequireAccessToken(jwtSvc))
	devices.GET("", h.ListDevices)
	devices.DELETE("/:id", h.RevokeDevice)
}
