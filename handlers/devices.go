package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clubops/memberauth/services/trusteddevice"
	"github.com/labstack/echo/v4"
)

type deviceResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

// ListDevices returns the authenticated member's live trusted devices.
func (h *Handler) ListDevices(c echo.Context) error {
	m, err := h.currentMember(c)
	if err != nil {
		return err
	}

	devices, err := h.trusted.List(m.ID)
	if err != nil {
		return h.writeError(c, err)
	}

	resp := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		resp = append(resp, deviceResponse{
			ID:        d.ID,
			Name:      d.Name,
			ExpiresAt: d.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
			CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{"devices": resp})
}

// RevokeDevice removes one of the member's trusted devices, forcing a full
// second-factor login from it next time.
func (h *Handler) RevokeDevice(c echo.Context) error {
	deviceID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || deviceID == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "Invalid device id"})
	}

	m, err := h.currentMember(c)
	if err != nil {
		return err
	}

	if err := h.trusted.Revoke(m.ID, uint(deviceID)); err != nil {
		if errors.Is(err, trusteddevice.ErrDeviceNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Code: "not_found", Message: "Trusted device not found"})
		}
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Trusted device revoked"})
}
