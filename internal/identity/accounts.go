package identity

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Account is a password principal known to the provider.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	AvatarURL    string
}

// AccountStore looks up password accounts by email.
type AccountStore interface {
	Lookup(ctx context.Context, email string) (Account, bool)
}

// StaticAccounts is an AccountStore over a fixed account list.
type StaticAccounts struct {
	byEmail map[string]Account
}

// NewStaticAccounts indexes accounts by case-folded email.
func NewStaticAccounts(accounts []Account) *StaticAccounts {
	byEmail := make(map[string]Account, len(accounts))
	for _, acc := range accounts {
		byEmail[normalizeEmail(acc.Email)] = acc
	}
	return &StaticAccounts{byEmail: byEmail}
}

func (s *StaticAccounts) Lookup(_ context.Context, email string) (Account, bool) {
	acc, ok := s.byEmail[normalizeEmail(email)]
	return acc, ok
}

// HashPassword produces a bcrypt hash suitable for the accounts configuration.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
