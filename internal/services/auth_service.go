package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/isdelr/stencil-be/internal/apperr"
	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/isdelr/stencil-be/internal/mail"
	"github.com/isdelr/stencil-be/internal/models"
	"github.com/rs/zerolog/log"
)

// AuthServiceProvider defines the account flows exposed over HTTP.
type AuthServiceProvider interface {
	Signup(ctx context.Context, input RegisterInput) (models.User, error)
	Signin(ctx context.Context, email, password string) (TokenResponse, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	CurrentUser(ctx context.Context, caller auth.Caller) (models.User, error)
}

// TokenResponse is returned by a successful signin.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthService orchestrates the credential store, the token service and mail
// delivery for signup, signin and password reset.
type AuthService struct {
	users    UserServiceProvider
	tokens   Tokens
	mailer   mail.Mailer
	events   EventServiceProvider
	resetURL string
}

// NewAuthService creates a new AuthService. resetURL, when set, is used to
// build a link in reset mails; the token is appended as the "token" query
// parameter.
func NewAuthService(users UserServiceProvider, tokens Tokens, mailer mail.Mailer, events EventServiceProvider, resetURL string) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		mailer:   mailer,
		events:   events,
		resetURL: resetURL,
	}
}

// Signup registers a new account.
func (s *AuthService) Signup(ctx context.Context, input RegisterInput) (models.User, error) {
	user, err := s.users.Register(ctx, input)
	if err != nil {
		return models.User{}, err
	}
	log.Info().Int64("user_id", user.ID).Msg("User registered")
	recordEvent(ctx, s.events, "user.signup", "Account created", &user.ID)
	return user, nil
}

// Signin verifies credentials and issues an access token bound to the user.
func (s *AuthService) Signin(ctx context.Context, email, password string) (TokenResponse, error) {
	user, err := s.users.VerifyCredentials(ctx, email, password)
	if err != nil {
		return TokenResponse{}, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("issue token: %w", err)
	}
	recordEvent(ctx, s.events, "user.signin", "Signed in", &user.ID)
	return TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// RequestPasswordReset mails a reset token to the owner of email. The token
// is only ever delivered through the mailer.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.tokens.IssueReset(user.ID)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Password Reset",
		Body:    s.resetBody(token),
	}); err != nil {
		return fmt.Errorf("deliver reset token: %w", err)
	}
	recordEvent(ctx, s.events, "user.password_reset.requested", "Password reset requested", &user.ID)
	return nil
}

// ConfirmPasswordReset verifies a reset token and sets the new password of
// its subject.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokens.VerifyReset(token)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, userID, newPassword); err != nil {
		return err
	}
	log.Info().Int64("user_id", userID).Msg("Password reset completed")
	recordEvent(ctx, s.events, "user.password_reset.completed", "Password changed via reset token", &userID)
	return nil
}

// CurrentUser returns the account of an authenticated caller.
func (s *AuthService) CurrentUser(ctx context.Context, caller auth.Caller) (models.User, error) {
	userID, err := requireUser(caller)
	if err != nil {
		return models.User{}, err
	}
	return s.users.GetUserByID(ctx, userID)
}

func (s *AuthService) resetBody(token string) string {
	body := "Use this token to reset your password: " + token
	if s.resetURL == "" {
		return body
	}
	link, err := url.Parse(s.resetURL)
	if err != nil {
		return body
	}
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()
	return body + "\n\nOr open this link: " + link.String()
}

// requireUser returns the ID of an authenticated caller or an
// ErrInvalidToken failure for anonymous callers.
func requireUser(caller auth.Caller) (int64, error) {
	userID, ok := caller.UserID()
	if !ok {
		return 0, apperr.New(apperr.ErrInvalidToken, "Authentication required")
	}
	return userID, nil
}
