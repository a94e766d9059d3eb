package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// ==================== UUID ====================

func ParseUUID(uuidStr string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(uuidStr))
}

// ==================== OTP ====================

// GenerateOTP returns a uniformly random numeric code, leading zeros kept.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate otp digit: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}

	return sb.String(), nil
}

// ==================== TOKENS ====================

// GenerateURLToken returns nBytes of entropy, base64url without padding.
func GenerateURLToken(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate url token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IsDigits reports whether s is exactly n ASCII digits.
func IsDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
