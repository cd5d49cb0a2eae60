package twofa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const otpDigits = 6

func generateOTPCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP code: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// otpHash salts the code with a channel+subject-derived salt so the same code
// hashes differently per member and per channel. Only this hash is embedded
// in the signed challenge token; the raw code travels out-of-band.
func otpHash(channel string, memberID uint, code string) string {
	salt := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", channel, memberID)))
	sum := sha256.Sum256(append(salt[:], []byte(code)...))
	return hex.EncodeToString(sum[:])
}

func otpHashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func generateRecoveryCode() (string, error) {
	raw := make([]byte, 5)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate recovery code: %w", err)
	}
	code := strings.ToUpper(hex.EncodeToString(raw))
	return code[:5] + "-" + code[5:], nil
}
