package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"crmhooks/internal/platform/config"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckAdmin verifies an email/password pair against the configured admin account.
func CheckAdmin(cfg config.AdminConfig, email, password string) error {
	if cfg.Email == "" || cfg.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(cfg.Email), []byte(email)) == 1
	if err := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password)); err != nil || !emailOK {
		return ErrInvalidCredentials
	}
	return nil
}
