package auth

import (
	"context"
	"fmt"
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrSessionNotFound    = fmt.Errorf("session not found")
	ErrSessionExpired     = fmt.Errorf("session expired")
)

// Identity is an authenticated user as reported by the provider
type Identity struct {
	UID     string `json:"uid"`
	Email   string `json:"email"`
	IDToken string `json:"-"`
}

//go:generate mockgen -destination=../mocks/provider.go -package=mocks github.com/stl-inc/as-report-api/auth Provider

// Provider - authentication provider
type Provider interface {
	// SignIn returns ErrInvalidCredentials when the provider rejects the pair
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context, uid string) error
}
