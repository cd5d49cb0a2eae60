package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clubops/memberauth/services/member"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type setPINRequest struct {
	CurrentPIN string `json:"currentPin,omitempty"`
	NewPIN     string `json:"newPin"`
}

type removePINRequest struct {
	CurrentPIN string `json:"currentPin"`
}

// SetPIN creates or changes the authenticated member's PIN.
func (h *Handler) SetPIN(c echo.Context) error {
	var req setPINRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request body"})
	}
	if len(req.NewPIN) < 4 {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "PIN must be at least 4 digits"})
	}

	m, err := h.currentMember(c)
	if err != nil {
		return err
	}

	if err := h.pin.Set(m, req.CurrentPIN, req.NewPIN); err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "PIN updated"})
}

// RemovePIN deletes the authenticated member's PIN after verifying it.
func (h *Handler) RemovePIN(c echo.Context) error {
	var req removePINRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid request body"})
	}

	m, err := h.currentMember(c)
	if err != nil {
		return err
	}

	if err := h.pin.Remove(m, req.CurrentPIN); err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "PIN removed"})
}

// AdminResetPIN clears another member's PIN. Authorization and rate limiting
// live in the PIN service.
func (h *Handler) AdminResetPIN(c echo.Context) error {
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || targetID == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid member id"})
	}

	actor, err := h.currentMember(c)
	if err != nil {
		return err
	}

	var target member.Member
	if err := h.db.First(&target, uint(targetID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Code: "not_found", Message: "Member not found"})
		}
		return h.writeError(c, err)
	}

	if err := h.pin.AdminReset(actor, &target); err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "PIN reset, member must set a new PIN"})
}
