package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/postboard/internal/apperror"
	"github.com/sakif/postboard/internal/auth"
	"github.com/sakif/postboard/internal/model"
	"github.com/sakif/postboard/internal/repository"
)

// UserService owns the users collection.
//
// Email uniqueness is NOT enforced here: Register writes whatever it is given.
// Callers that need uniqueness (AuthService) run Exists first. The check and
// the write are not atomic.
type UserService struct {
	repo      repository.Repository[model.User]
	passwords auth.PasswordEncoder
	logger    *slog.Logger
}

func NewUserService(repo repository.Repository[model.User], passwords auth.PasswordEncoder, logger *slog.Logger) *UserService {
	return &UserService{
		repo:      repo,
		passwords: passwords,
		logger:    logger,
	}
}

// Exists reports whether any user has the given email.
func (s *UserService) Exists(ctx context.Context, email string) (bool, error) {
	u, err := s.repo.FindOne(ctx, repository.Filter{"email": email})
	if err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return u != nil, nil
}

// Register encodes the password and stores a new user.
func (s *UserService) Register(ctx context.Context, in model.NewUser) (*model.User, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	encoded, err := s.passwords.Encode(in.Password)
	if err != nil {
		return nil, fmt.Errorf("encoding password: %w", err)
	}

	user, err := s.repo.Create(ctx, &model.User{
		Email:    in.Email,
		Password: encoded,
		UserName: in.UserName,
	})
	if err != nil {
		s.logger.Error("failed to create user", slog.String("email", in.Email), errAttr(err))
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("id", user.ID), slog.String("email", user.Email))
	return user, nil
}

// Authenticate returns the first user with this email whose stored password
// matches raw. Duplicate emails can exist (see the type comment), so every
// candidate is tried.
func (s *UserService) Authenticate(ctx context.Context, email, raw string) (*model.User, error) {
	candidates, err := s.repo.FindMany(ctx, repository.Filter{"email": email})
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	for i := range candidates {
		if s.passwords.Matches(candidates[i].Password, raw) {
			return &candidates[i], nil
		}
	}
	return nil, apperror.InvalidCredentials()
}

func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	id, err := requireID(id, "user")
	if err != nil {
		return nil, err
	}

	u, err := s.repo.FindOne(ctx, repository.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", id, err)
	}
	if u == nil {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.repo.FindOne(ctx, repository.Filter{"email": email})
	if err != nil {
		return nil, fmt.Errorf("fetching user by email: %w", err)
	}
	if u == nil {
		return nil, apperror.NotFoundBy("user", "email", email)
	}
	return u, nil
}

// List returns every user matching filter; never nil.
func (s *UserService) List(ctx context.Context, filter repository.Filter) ([]model.User, error) {
	users, err := s.repo.FindMany(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list users", errAttr(err))
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Update applies patch to the user with this id. A new password is encoded
// before it is stored. Returns (nil, nil) when no such user exists.
func (s *UserService) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	id, err := requireID(id, "user")
	if err != nil {
		return nil, err
	}
	if err := model.Validate(patch); err != nil {
		return nil, err
	}

	fields := patch.Fields()
	if patch.Password != nil {
		encoded, err := s.passwords.Encode(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("encoding password: %w", err)
		}
		fields["password"] = encoded
	}

	u, err := s.repo.Update(ctx, repository.ByID(id), repository.Patch(fields))
	if err != nil {
		s.logger.Error("failed to update user", slog.String("id", id), errAttr(err))
		return nil, fmt.Errorf("updating user %s: %w", id, err)
	}
	if u != nil {
		s.logger.Info("user updated", slog.String("id", id))
	}
	return u, nil
}

// Delete removes the user. Returns (nil, nil) when no such user exists.
func (s *UserService) Delete(ctx context.Context, id string) (*model.User, error) {
	id, err := requireID(id, "user")
	if err != nil {
		return nil, err
	}

	u, err := s.repo.Remove(ctx, repository.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("deleting user %s: %w", id, err)
	}
	if u != nil {
		s.logger.Info("user deleted", slog.String("id", id))
	}
	return u, nil
}
