package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/postboard/internal/apperror"
	"github.com/sakif/postboard/internal/auth"
	"github.com/sakif/postboard/internal/model"
)

func newTestAuthService(t *testing.T) (*AuthService, *fakeRepo[model.User]) {
	t.Helper()
	users, repo := newTestUserService(t)
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	return NewAuthService(users, tokens, discardLogger()), repo
}

var newAlice = model.NewUser{Email: "a@x.com", Password: "secret1", UserName: "alice"}

func TestAuthRegister_IssuesToken(t *testing.T) {
	svc, _ := newTestAuthService(t)

	res, err := svc.Register(context.Background(), newAlice)
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.NotEmpty(t, res.AccessToken)

	id, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: res.User.ID, Email: "a@x.com", UserName: "alice"}, *id)
}

func TestAuthRegister_DuplicateEmail(t *testing.T) {
	svc, repo := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, newAlice)
	require.NoError(t, err)

	_, err = svc.Register(ctx, newAlice)
	require.ErrorIs(t, err, apperror.ErrDuplicateEmail)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeDuplicateEmail, appErr.Code)
	assert.Equal(t, 1, repo.size())
}

func TestAuthLogin(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, newAlice)
	require.NoError(t, err)

	t.Run("correct credentials", func(t *testing.T) {
		res, err := svc.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)
		assert.NotEmpty(t, res.AccessToken)
		assert.Equal(t, "a@x.com", res.User.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "a@x.com", "secret2")
		require.ErrorIs(t, err, apperror.ErrInvalidCredentials)

		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperror.CodeInvalidCredentials, appErr.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "b@x.com", "secret1")
		assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
	})

	t.Run("malformed input", func(t *testing.T) {
		_, err := svc.Login(ctx, "not-an-email", "secret1")
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})
}

func TestAuthCreateUser_NoToken(t *testing.T) {
	svc, repo := newTestAuthService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, newAlice)
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = svc.CreateUser(ctx, newAlice)
	assert.ErrorIs(t, err, apperror.ErrDuplicateEmail)
	assert.Equal(t, 1, repo.size())
}

func TestAuthValidateToken_Rejects(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, err := svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
