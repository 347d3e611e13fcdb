package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/postboard/internal/apperror"
	"github.com/sakif/postboard/internal/auth"
	"github.com/sakif/postboard/internal/model"
)

// UserDirectory is what AuthService needs from the user store.
type UserDirectory interface {
	Exists(ctx context.Context, email string) (bool, error)
	Register(ctx context.Context, in model.NewUser) (*model.User, error)
	Authenticate(ctx context.Context, email, raw string) (*model.User, error)
}

var (
	_ UserDirectory       = (*UserService)(nil)
	_ auth.TokenValidator = (*AuthService)(nil)
)

// AuthService issues bearer tokens for registered users.
//
//	AuthHandler (HTTP) → AuthService → UserDirectory (users collection)
//	                   ↘ TokenService (JWT)
type AuthService struct {
	users  UserDirectory
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(users UserDirectory, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// AuthResult bundles the user record with the token issued for it.
type AuthResult struct {
	User        *model.User
	AccessToken string
}

// Register creates a user and signs them in. An email that is already taken
// fails with apperror.ErrDuplicateEmail.
func (s *AuthService) Register(ctx context.Context, in model.NewUser) (*AuthResult, error) {
	user, err := s.CreateUser(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks the credentials and issues a token. Unknown email and wrong
// password both fail with apperror.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if err := model.Validate(model.Credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.Info("login rejected", slog.String("email", email))
		return nil, err
	}
	return s.issue(user)
}

// CreateUser is Register without the token: the duplicate-email check, then
// the write.
func (s *AuthService) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	taken, err := s.users.Exists(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	if taken {
		return nil, apperror.DuplicateEmail(in.Email)
	}

	return s.users.Register(ctx, in)
}

// ValidateToken returns the identity a bearer token carries. Any failure is
// reported as apperror.ErrUnauthorized.
func (s *AuthService) ValidateToken(token string) (*auth.Identity, error) {
	id, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized(err.Error())
	}
	return id, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Identity{
		UserID:   user.ID,
		Email:    user.Email,
		UserName: user.UserName,
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("token issued", slog.String("userID", user.ID))
	return &AuthResult{User: user, AccessToken: token}, nil
}
