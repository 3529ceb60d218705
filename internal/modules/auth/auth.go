package auth

import (
	"context"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
)

// Service defines the interface for authentication-related business logic.
type Service interface {
	// Login checks credentials and issues a signed token.
	Login(ctx context.Context, email, password string) (*Token, error)
	// VerifyToken satisfies access.TokenVerifier.
	VerifyToken(ctx context.Context, token string) (*access.Actor, error)
}

// Token is returned on a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
