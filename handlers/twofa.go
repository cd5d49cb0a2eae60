package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type initOTPRequest struct {
	ChallengeToken string `json:"challengeToken,omitempty"`
	Channel        string `json:"channel"`
}

type verifyRequest struct {
	ChallengeToken string `json:"challengeToken,omitempty"`
	Code           string `json:"code"`
	Channel        string `json:"channel,omitempty"`
	RememberDevice bool   `json:"rememberDevice,omitempty"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// InitOTP dispatches a one-time code over email or SMS for a pending
// challenge and replaces the challenge with one bound to that code.
func (h *Handler) InitOTP(c echo.Context) error {
	var req initOTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request body"})
	}

	challenge := cookieValue(c, ChallengeCookie)
	if challenge == "" {
		challenge = req.ChallengeToken
	}
	if challenge == "" {
		return c.JSON(http.StatusUnauthorized, errorResponse{Code: "challenge_invalid", Message: "No pending verification"})
	}

	m, err := h.twofa.ChallengeMember(challenge)
	if err != nil {
		return h.writeError(c, err)
	}

	token, err := h.twofa.InitOTP(m, req.Channel)
	if err != nil {
		return h.writeError(c, err)
	}

	h.setCookie(c, ChallengeCookie, token, h.config.TwoFA.OTPExpiry)

	resp := map[string]string{"message": "Verification code sent"}
	if !h.config.App.IsProduction() {
		resp["challengeToken"] = token
	}
	return c.JSON(http.StatusOK, resp)
}

// VerifyTwoFA consumes the challenge and, on success, completes the login
// with a fresh token pair. A rememberDevice request records the device so
// future logins skip the second factor.
func (h *Handler) VerifyTwoFA(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request body"})
	}
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Verification code is required"})
	}

	challenge := cookieValue(c, ChallengeCookie)
	if challenge == "" {
		challenge = req.ChallengeToken
	}
	if challenge == "" {
		return c.JSON(http.StatusUnauthorized, errorResponse{Code: "challenge_invalid", Message: "No pending verification"})
	}

	m, err := h.twofa.Verify(challenge, req.Code, req.Channel)
	if err != nil {
		return h.writeError(c, err)
	}

	fp := h.requestFingerprint(c)

	if req.RememberDevice {
		org := h.loadOrganization(m.OrganizationID)

		if org != nil && org.TrustedDevicesEnabled {
			name := h.fingerprint.DeviceName(c.Request().UserAgent())
			if _, err := h.trusted.Trust(org.ID, m.ID, fp, name, h.twofa.RememberLifetime(org)); err != nil {
				return h.writeError(c, err)
			}
		}

		token, lifetime, err := h.twofa.MintRememberToken(org, m, fp)
		if err != nil {
			return h.writeError(c, err)
		}
		h.setCookie(c, RememberCookie, token, lifetime)
	}

	pair, err := h.refreshTokens.Issue(m.ID, m.Role, fp)
	if err != nil {
		return h.writeError(c, err)
	}

	return h.writeTokens(c, m, pair)
}

// InitTwoFASetup generates a pending TOTP secret for the authenticated
// member.
func (h *Handler) InitTwoFASetup(c echo.Context) error {
	m, err := h.currentMember(c)
	if err != nil {
		return err
	}

	setup, err := h.twofa.InitSetup(m)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"secret":          setup.Secret,
		"provisioningUri": setup.ProvisioningURI,
	})
}

// ConfirmTwoFASetup enables the second factor and returns the recovery codes.
// The codes are shown exactly once; only their hashes are stored.
func (h *Handler) ConfirmTwoFASetup(c echo.Context) error {
	var req codeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request body"})
	}

	m, err := h.currentMember(c)
	if err != nil {
		return err
	}

	codes, err := h.twofa.ConfirmSetup(m, req.Code)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":       "Two-factor authentication enabled",
		"recoveryCodes": codes,
	})
}

// DisableTwoFA turns the second factor off given a valid current code or an
// unused recovery code, and drops this member's trusted devices.
func (h *Handler) DisableTwoFA(c echo.Context) error {
	var req codeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request body"})
	}

	m, err := h.currentMember(c)
	if err != nil {
		return err
	}

	if err := h.twofa.Disable(m, req.Code); err != nil {
		return h.writeError(c, err)
	}

	if err := h.trusted.RevokeAllForMember(m.ID); err != nil {
		return h.writeError(c, err)
	}
	h.clearCookie(c, RememberCookie)

	return c.JSON(http.StatusOK, map[string]string{"message": "Two-factor authentication disabled"})
}
