package security

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 10

var ErrInvalidHashFormat = errors.New("invalid password hash format")

// PasswordHasher produces salted bcrypt digests of the form
// "$2a$<cost>$<53 chars of salt+hash>".
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("password is required")
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether secret matches digest. Empty input or a digest
// that is not in bcrypt's format never matches.
func (h *PasswordHasher) Verify(secret, digest string) bool {
	if secret == "" || CheckHashFormat(digest) != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// CheckHashFormat rejects anything that is not a 60 character modular-crypt
// bcrypt digest.
func CheckHashFormat(digest string) error {
	if len(digest) != 60 {
		return ErrInvalidHashFormat
	}
	parts := strings.Split(digest, "$")
	if len(parts) != 4 || parts[0] != "" {
		return ErrInvalidHashFormat
	}
	switch parts[1] {
	case "2a", "2b", "2y":
	default:
		return ErrInvalidHashFormat
	}
	if len(parts[2]) != 2 || parts[2][0] < '0' || parts[2][0] > '3' || parts[2][1] < '0' || parts[2][1] > '9' {
		return ErrInvalidHashFormat
	}
	if len(parts[3]) != 53 {
		return ErrInvalidHashFormat
	}
	return nil
}
