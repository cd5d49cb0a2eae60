package handlers

import (
	"net/http"

	"github.com/clubops/memberauth/services/member"
	"github.com/clubops/memberauth/services/refreshtoken"
	"github.com/clubops/memberauth/services/twofa"
	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	PIN      string `json:"pin,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

type memberResponse struct {
	ID               uint   `json:"id"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	TwoFAEnabled     bool   `json:"two_fa_enabled"`
	PINResetRequired bool   `json:"pin_reset_required"`
}

// Login verifies credentials and runs the post-password gates. The response
// status tells the client which step comes next: OK with tokens, REQUIRES_PIN,
// or REQUIRES_2FA with a challenge.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Email and password are required"})
	}

	m, err := h.credentials.Authenticate(req.Email, req.Password, c.RealIP())
	if err != nil {
		return h.writeError(c, err)
	}

	org := h.loadOrganization(m.OrganizationID)
	fp := h.requestFingerprint(c)

	eval, err := h.twofa.Evaluate(org, m, twofa.EvaluateRequest{
		PIN:           req.PIN,
		DeviceHash:    fp,
		RememberToken: cookieValue(c, RememberCookie),
	})
	if err != nil {
		return h.writeError(c, err)
	}

	switch eval.Status {
	case twofa.StatusPINRequired:
		return c.JSON(http.StatusOK, map[string]string{"status": twofa.StatusPINRequired})

	case twofa.StatusChallengeRequired:
		h.setCookie(c, ChallengeCookie, eval.ChallengeToken, h.config.TwoFA.OTPExpiry)
		resp := map[string]string{"status": twofa.StatusChallengeRequired}
		// The cookie is the carrier; the body echo exists for cookie-less API
		// clients and is withheld in production, like the refresh token.
		if !h.config.App.IsProduction() {
			resp["challengeToken"] = eval.ChallengeToken
		}
		return c.JSON(http.StatusOK, resp)
	}

	pair, err := h.refreshTokens.Issue(m.ID, m.Role, fp)
	if err != nil {
		return h.writeError(c, err)
	}

	return h.writeTokens(c, m, pair)
}

// Refresh rotates the presented refresh token. The token comes from the
// cookie when present, else from the request body.
func (h *Handler) Refresh(c echo.Context) error {
	var req refreshRequest
	_ = c.Bind(&req)

	tokenString := cookieValue(c, RefreshCookie)
	if tokenString == "" {
		tokenString = req.RefreshToken
	}
	if tokenString == "" {
		return c.JSON(http.StatusUnauthorized, errorResponse{Code: "refresh_token_missing", Message: "No refresh token supplied"})
	}

	pair, err := h.refreshTokens.Rotate(tokenString, h.requestFingerprint(c))
	if err != nil {
		h.clearCookie(c, RefreshCookie)
		h.clearCookie(c, ManagerCookie)
		return h.writeError(c, err)
	}

	return h.writeTokens(c, nil, pair)
}

// Logout revokes the refresh token and clears the session cookies. Revoking
// an already-revoked token still succeeds.
func (h *Handler) Logout(c echo.Context) error {
	var req refreshRequest
	_ = c.Bind(&req)

	tokenString := cookieValue(c, RefreshCookie)
	if tokenString == "" {
		tokenString = req.RefreshToken
	}

	if tokenString != "" {
		if err := h.refreshTokens.Revoke(tokenString); err != nil {
			return h.writeError(c, err)
		}
	}

	h.clearCookie(c, RefreshCookie)
	h.clearCookie(c, ChallengeCookie)
	h.clearCookie(c, ManagerCookie)

	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) writeTokens(c echo.Context, m *member.Member, pair *refreshtoken.TokenPair) error {
	h.setCookie(c, RefreshCookie, pair.RefreshToken, h.config.JWT.RefreshExpiry)
	h.clearCookie(c, ChallengeCookie)

	resp := map[string]any{
		"status":      twofa.StatusOK,
		"accessToken": pair.AccessToken,
		"expiresIn":   int(h.config.JWT.AccessExpiry.Seconds()),
	}
	// Outside production the refresh token is echoed in the body for API
	// clients that cannot use cookies; in production the cookie is the only
	// carrier.
	if !h.config.App.IsProduction() {
		resp["refreshToken"] = pair.RefreshToken
	}
	if m != nil {
		// PINResetRequired tells the client to force the set-PIN screen after
		// an administrative reset; pin.Set clears it.
		resp["member"] = memberResponse{
			ID:               m.ID,
			Email:            m.Email,
			Role:             m.Role,
			TwoFAEnabled:     m.TwoFAEnabled,
			PINResetRequired: m.PINResetRequired,
		}
	}

	return c.JSON(http.StatusOK, resp)
}
