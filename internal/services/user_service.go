package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/isdelr/stencil-be/internal/apperr"
	"github.com/isdelr/stencil-be/internal/models"
	"github.com/isdelr/stencil-be/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt hashes without truncation.
const maxPasswordBytes = 72

// UserServiceProvider defines the interface for the credential store.
type UserServiceProvider interface {
	Register(ctx context.Context, input RegisterInput) (models.User, error)
	VerifyCredentials(ctx context.Context, email, password string) (models.User, error)
	SetPassword(ctx context.Context, userID int64, newPassword string) error
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email    string
	Username string
	FullName string
	Password string
}

// UserService stores user identities and their bcrypt password hashes.
type UserService struct {
	users UserStore
	cost  int

	dummyOnce sync.Once
	dummyHash []byte
}

// UserOption customizes a UserService.
type UserOption func(*UserService)

// WithHashCost overrides the bcrypt cost factor.
func WithHashCost(cost int) UserOption {
	return func(s *UserService) { s.cost = cost }
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, opts ...UserOption) *UserService {
	s := &UserService{users: users, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if password == "" {
		return apperr.InvalidInput("password is required")
	}
	if len(password) > maxPasswordBytes {
		return apperr.InvalidInput(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

// Register creates a new user, hashing their password. Email and username
// must both be unused.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	user := models.User{
		Email:    NormalizeEmail(input.Email),
		Username: strings.TrimSpace(input.Username),
		FullName: strings.TrimSpace(input.FullName),
	}
	if user.Email == "" || user.Username == "" || user.FullName == "" {
		return models.User{}, apperr.InvalidInput("email, username and full_name are required")
	}
	if addr, err := mail.ParseAddress(user.Email); err != nil || addr.Address != user.Email {
		return models.User{}, apperr.InvalidInput("email address is invalid")
	}
	if err := validatePassword(input.Password); err != nil {
		return models.User{}, err
	}

	if _, err := s.users.GetByEmail(ctx, user.Email); err == nil {
		return models.User{}, apperr.Conflict("Email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("check email: %w", err)
	}
	if _, err := s.users.GetByUsername(ctx, user.Username); err == nil {
		return models.User{}, apperr.Conflict("Username already taken")
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("check username: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hashedPassword)

	// A concurrent signup can still win the race; the schema has the final say.
	if err := s.users.Create(ctx, &user); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			return models.User{}, apperr.Conflict("Email already registered")
		case errors.Is(err, store.ErrDuplicateUsername):
			return models.User{}, apperr.Conflict("Username already taken")
		}
		return models.User{}, err
	}

	user.PasswordHash = ""
	return user, nil
}

// VerifyCredentials checks an email and password pair. Unknown emails and
// wrong passwords fail with the same ErrAuthentication, and both paths run a
// bcrypt comparison.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return models.User{}, fmt.Errorf("look up user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return models.User{}, apperr.ErrAuthentication
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, apperr.ErrAuthentication
	}

	user.PasswordHash = ""
	return user, nil
}

// SetPassword replaces the stored hash of a user.
func (s *UserService) SetPassword(ctx context.Context, userID int64, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, string(hashedPassword)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return err
	}
	return nil
}

// GetUserByID retrieves a single user by their ID, without the hash.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, apperr.NotFound("User not found")
		}
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// GetUserByEmail retrieves a single user by their email, without the hash.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, apperr.NotFound("User not found")
		}
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *UserService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("stencil-timing-equalizer"), s.cost)
	})
	return s.dummyHash
}
