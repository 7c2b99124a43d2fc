package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns a password into its stored form and checks it back
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(stored, password string) bool
}

// NewPasswordHasher returns the hasher for a PASSWORD_STORAGE mode
func NewPasswordHasher(mode string) (PasswordHasher, error) {
	switch mode {
	case "", "plain":
		return PlainHasher{}, nil
	case "bcrypt":
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown password storage %q", mode)
	}
}

// PlainHasher stores passwords as given
type PlainHasher struct{}

func (PlainHasher) Hash(password string) (string, error) {
	return password, nil
}

func (PlainHasher) Compare(stored, password string) bool {
	return stored == password
}

// BcryptHasher stores bcrypt hashes
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (h BcryptHasher) Compare(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
