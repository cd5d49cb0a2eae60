package handlers

import (
	"errors"
	"net/http"

	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/middleware/jwtauth"
	"github.com/clubops/memberauth/services/credentials"
	"github.com/clubops/memberauth/services/fingerprint"
	"github.com/clubops/memberauth/services/logging"
	"github.com/clubops/memberauth/services/member"
	"github.com/clubops/memberauth/services/pin"
	"github.com/clubops/memberauth/services/refreshtoken"
	"github.com/clubops/memberauth/services/trusteddevice"
	"github.com/clubops/memberauth/services/twofa"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	config        *config.Config
	db            *gorm.DB
	logger        *logging.Service
	credentials   *credentials.Service
	twofa         *twofa.Service
	pin           *pin.Service
	refreshTokens *refreshtoken.Service
	trusted       *trusteddevice.Service
	fingerprint   *fingerprint.Service
}

func NewHandler(cfg *config.Config, db *gorm.DB, logger *logging.Service, credentialsSvc *credentials.Service,
	twofaSvc *twofa.Service, pinSvc *pin.Service, refreshSvc *refreshtoken.Service,
	trustedSvc *trusteddevice.Service, fingerprintSvc *fingerprint.Service) *Handler {
	return &Handler{
		config:        cfg,
		db:            db,
		logger:        logger,
		credentials:   credentialsSvc,
		twofa:         twofaSvc,
		pin:           pinSvc,
		refreshTokens: refreshSvc,
		trusted:       trustedSvc,
		fingerprint:   fingerprintSvc,
	}
}

// requestFingerprint binds tokens and trusted-device records to the calling
// device.
func (h *Handler) requestFingerprint(c echo.Context) string {
	return h.fingerprint.Fingerprint(c.Request().UserAgent(), c.RealIP())
}

// currentMember loads the authenticated member for a route behind the access
// token middleware.
func (h *Handler) currentMember(c echo.Context) (*member.Member, error) {
	memberID := jwtauth.GetMemberID(c)
	if memberID == 0 {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	var m member.Member
	if err := h.db.First(&m, memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Account no longer exists")
		}
		return nil, err
	}

	return &m, nil
}

func (h *Handler) loadOrganization(organizationID uint) *member.Organization {
	if organizationID == 0 {
		return nil
	}

	var org member.Organization
	if err := h.db.First(&org, organizationID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && h.logger != nil {
			h.logger.Error("organization lookup failed",
				zap.Error(err),
				zap.Uint("organization_id", organizationID))
		}
		return nil
	}

	return &org
}
