package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Cookie names. ManagerCookie belongs to the separate staff console that
// shares the domain; it is cleared alongside the member session so a staff
// login cannot outlive a member logout on the same browser.
const (
	RefreshCookie   = "refreshToken"
	ChallengeCookie = "twoFaChallenge"
	RememberCookie  = "twoFaRemember"
	ManagerCookie   = "managerToken"
)

func (h *Handler) setCookie(c echo.Context, name, value string, maxAge time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.config.App.IsProduction(),
		SameSite: h.cookieSameSite(),
	})
}

func (h *Handler) clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.App.IsProduction(),
		SameSite: h.cookieSameSite(),
	})
}

// Cross-site embedding needs SameSite=None, which browsers only accept on
// Secure cookies, so None is paired with production TLS and Lax elsewhere.
func (h *Handler) cookieSameSite() http.SameSite {
	if h.config.App.IsProduction() {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil || cookie == nil {
		return ""
	}
	return cookie.Value
}
