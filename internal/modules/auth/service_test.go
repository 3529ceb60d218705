package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/auth"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/user"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/clock"
)

type users map[string]*user.User

func (u users) CreateUser(_ context.Context, usr *user.User) error {
	u[usr.Email] = usr
	return nil
}

func (u users) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	if found, ok := u[email]; ok {
		return found, nil
	}
	return nil, apperror.NotFound("user")
}

func (u users) GetUserByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	for _, found := range u {
		if found.ID == id {
			return found, nil
		}
	}
	return nil, apperror.NotFound("user")
}

func newService(t *testing.T, clk clock.Clock) (auth.Service, *user.User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &user.User{ID: uuid.New(), Email: "mwila@example.com", PasswordHash: string(hash), Role: access.RoleStaff}
	return auth.NewService(users{u.Email: u}, "test-secret", time.Hour, clk), u
}

func TestLoginAndVerify(t *testing.T) {
	svc, u := newService(t, clock.NewFixed(time.Now().UTC()))

	token, err := svc.Login(context.Background(), "  Mwila@Example.com ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	actor, err := svc.VerifyToken(context.Background(), token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, actor.ID)
	assert.Equal(t, access.RoleStaff, actor.Role)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _ := newService(t, clock.NewFixed(time.Now().UTC()))

	_, err := svc.Login(context.Background(), "mwila@example.com", "wrong")
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	_, err = svc.Login(context.Background(), "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}

func TestVerifyToken_Rejects(t *testing.T) {
	clk := clock.NewFixed(time.Now().UTC())
	svc, _ := newService(t, clk)
	token, err := svc.Login(context.Background(), "mwila@example.com", "s3cret-pass")
	require.NoError(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString(), "role": "platform_admin"})
	forgedString, err := forged.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString(), "role": "superuser"})
	badRoleString, err := badRole.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": forgedString,
		"unknown role": badRoleString,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyToken(context.Background(), tok)
			assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
		})
	}

	clk.Advance(2 * time.Hour)
	_, err = svc.VerifyToken(context.Background(), token.AccessToken)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}
