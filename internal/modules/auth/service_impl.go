package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/user"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/clock"
)

// claims carries the subject and the immutable role.
type claims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

type service struct {
	userRepo user.Repository
	secret   []byte
	ttl      time.Duration
	clock    clock.Clock
}

// NewService creates a new auth service.
func NewService(userRepo user.Repository, secret string, ttl time.Duration, clk clock.Clock) Service {
	return &service{userRepo: userRepo, secret: []byte(secret), ttl: ttl, clock: clk}
}

func (s *service) Login(ctx context.Context, email, password string) (*Token, error) {
	u, err := s.userRepo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.Unauthenticated("invalid credentials")
	}

	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		Role: string(u.Role),
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, apperror.Internal(err, "sign token")
	}

	return &Token{AccessToken: tokenString, TokenType: "Bearer", ExpiresIn: int64(s.ttl.Seconds())}, nil
}

func (s *service) VerifyToken(ctx context.Context, tokenString string) (*access.Actor, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperror.Unauthenticated("invalid token")
	}
	if c.ExpiresAt != 0 && s.clock.Now().Unix() > c.ExpiresAt {
		return nil, apperror.Unauthenticated("token expired")
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, apperror.Unauthenticated("invalid token subject")
	}
	role := access.Role(c.Role)
	if !role.Valid() {
		return nil, apperror.Unauthenticated("invalid token role")
	}
	return &access.Actor{ID: id, Role: role}, nil
}
