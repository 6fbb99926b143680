package authz

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestRequireAdminUnauthenticated(t *testing.T) {
	err := RequireAdmin(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRequireAdminCustomerForbidden(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &AuthUser{ID: "cust-1"})

	err := RequireAdmin(ctx)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequireAdminAllowed(t *testing.T) {
	ctx := ContextWithUser(context.Background(), &AuthUser{IsAdmin: true})

	if err := RequireAdmin(ctx); err != nil {
		t.Fatalf("expected admin access, got %v", err)
	}
}

func TestRequesterID(t *testing.T) {
	if got := RequesterID(context.Background()); got != "" {
		t.Fatalf("expected empty requester, got %q", got)
	}
	ctx := ContextWithUser(context.Background(), &AuthUser{ID: "cust-7"})
	if got := RequesterID(ctx); got != "cust-7" {
		t.Fatalf("requester = %q, want cust-7", got)
	}
}

func TestVerifyAdminToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	tests := []struct {
		name  string
		hash  string
		token string
		want  error
	}{
		{name: "match", hash: string(hash), token: "s3cret", want: nil},
		{name: "surrounding space", hash: string(hash), token: " s3cret ", want: nil},
		{name: "missing token", hash: string(hash), token: "", want: ErrUnauthenticated},
		{name: "wrong token", hash: string(hash), token: "guess", want: ErrForbidden},
		{name: "no hash configured", hash: "", token: "s3cret", want: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyAdminToken(tt.hash, tt.token)
			if !errors.Is(err, tt.want) {
				t.Fatalf("VerifyAdminToken() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHashTokenRoundTrip(t *testing.T) {
	hash, err := HashToken("front-desk")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyAdminToken(hash, "front-desk"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := HashToken("  "); err == nil {
		t.Fatal("expected error for blank token")
	}
}
