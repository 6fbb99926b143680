// Package authz carries the caller's identity through request contexts and
// gates admin routes behind a bcrypt-hashed token.
package authz

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// AuthUser is the caller as resolved by middleware. ID is the customer
// identifier used for pending-hold ownership; it may be empty for anonymous
// callers.
type AuthUser struct {
	ID      string
	IsAdmin bool
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// RequesterID returns the caller's customer id, or "" when anonymous.
func RequesterID(ctx context.Context) string {
	if user := UserFromContext(ctx); user != nil {
		return user.ID
	}
	return ""
}

func IsAdmin(user *AuthUser) bool {
	return user != nil && user.IsAdmin
}

func RequireAdmin(ctx context.Context) error {
	user := UserFromContext(ctx)
	if user == nil {
		return ErrUnauthenticated
	}
	if !IsAdmin(user) {
		return ErrForbidden
	}
	return nil
}

// HashToken wraps bcrypt.GenerateFromPassword for the admin token stored in
// ADMIN_TOKEN_HASH.
func HashToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAdminToken checks a presented token against the configured hash.
// A missing token is ErrUnauthenticated; a wrong one, or no configured hash,
// is ErrForbidden.
func VerifyAdminToken(hash, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrUnauthenticated
	}
	if hash == "" {
		return ErrForbidden
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
		return ErrForbidden
	}
	return nil
}
