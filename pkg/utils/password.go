package utils

import "golang.org/x/crypto/bcrypt"

// bcrypt ignores input past 72 bytes, request DTOs cap passwords there.
const MaxPasswordBytes = 72

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPasswordHash(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// dummyHash keeps the unknown-email login path as slow as a real check.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("provalab-timing-equalizer"), bcrypt.DefaultCost)

func BurnPasswordCheck(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
