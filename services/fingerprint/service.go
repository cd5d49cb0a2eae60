package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mileusna/useragent"
)

// Service derives a stable-enough device identifier from request metadata.
// The fingerprint is not cryptographic; it binds refresh tokens and trusted
// device records to the device that requested them.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Fingerprint(userAgent, clientIP string) string {
	sum := sha256.Sum256([]byte(userAgent + "|" + clientIP))
	return hex.EncodeToString(sum[:])
}

// DeviceName produces a human-readable label for trusted-device records,
// e.g. "Firefox 128 on Windows".
func (s *Service) DeviceName(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgentString)

	name := ua.Name
	if name == "" {
		return "Unknown Device"
	}
	if ua.Version != "" {
		name += " " + ua.Version
	}
	if ua.OS != "" {
		name += " on " + ua.OS
	}

	return name
}
