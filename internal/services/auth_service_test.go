package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/isdelr/stencil-be/internal/apperr"
	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/isdelr/stencil-be/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetTokenFrom(t *testing.T, body string) string {
	t.Helper()
	const prefix = "Use this token to reset your password: "
	require.True(t, strings.HasPrefix(body, prefix))
	token := strings.TrimPrefix(body, prefix)
	if i := strings.IndexByte(token, '\n'); i >= 0 {
		token = token[:i]
	}
	return token
}

func TestAuthService_SignupSignin(t *testing.T) {
	env := newTestEnv(t, DefaultTemplateOptions())
	ctx := context.Background()

	user, err := env.auth.Signup(ctx, RegisterInput{Email: "alice@x.com", Username: "alice", FullName: "Alice", Password: "pw1"})
	require.NoError(t, err)

	resp, err := env.auth.Signin(ctx, "alice@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)

	subject, err := env.tokens.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)

	_, err = env.auth.Signin(ctx, "alice@x.com", "wrong")
	assert.ErrorIs(t, err, apperr.ErrAuthentication)

	me, err := env.auth.CurrentUser(ctx, auth.Authenticated(subject))
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	_, err = env.auth.CurrentUser(ctx, auth.Anonymous())
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	events, err := env.events.GetRecentEvents(ctx, auth.Authenticated(user.ID), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "user.signin", events[0].Type)
	assert.Equal(t, "user.signup", events[1].Type)
}

func TestAuthService_PasswordReset(t *testing.T) {
	env := newTestEnv(t, DefaultTemplateOptions())
	ctx := context.Background()
	env.register(t, "alice@x.com", "alice")

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "alice@x.com"))
	sent := env.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@x.com", sent[0].To)
	token := resetTokenFrom(t, sent[0].Body)

	// A reset token is not an access token.
	_, err := env.tokens.Verify(token)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	require.NoError(t, env.auth.ConfirmPasswordReset(ctx, token, "pw2"))
	_, err = env.auth.Signin(ctx, "alice@x.com", "pw2")
	assert.NoError(t, err)
	_, err = env.auth.Signin(ctx, "alice@x.com", "pw1")
	assert.ErrorIs(t, err, apperr.ErrAuthentication)
}

func TestAuthService_RequestPasswordResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t, DefaultTemplateOptions())

	err := env.auth.RequestPasswordReset(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, env.mailer.messages())
}

func TestAuthService_RequestPasswordResetMailFailure(t *testing.T) {
	env := newTestEnv(t, DefaultTemplateOptions())
	env.register(t, "alice@x.com", "alice")
	env.mailer.err = errors.New("relay down")

	err := env.auth.RequestPasswordReset(context.Background(), "alice@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
}

func TestAuthService_ResetLink(t *testing.T) {
	env := newTestEnv(t, DefaultTemplateOptions())
	env.auth = NewAuthService(env.users, env.tokens, env.mailer, nil, "https://app.example.com/reset?src=mail")
	env.register(t, "alice@x.com", "alice")

	require.NoError(t, env.auth.RequestPasswordReset(context.Background(), "alice@x.com"))
	body := env.mailer.messages()[0].Body
	token := resetTokenFrom(t, body)
	assert.Contains(t, body, "https://app.example.com/reset?src=mail&token="+token)
}

func TestAuthService_ConfirmPasswordReset_InvalidToken(t *testing.T) {
	env := newTestEnv(t, DefaultTemplateOptions())
	id := env.register(t, "alice@x.com", "alice")
	ctx := context.Background()

	err := env.auth.ConfirmPasswordReset(ctx, "garbage", "pw2")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	access, err := env.tokens.Issue(id)
	require.NoError(t, err)
	err = env.auth.ConfirmPasswordReset(ctx, access, "pw2")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
}

func TestAuthService_ConfirmPasswordReset_DeletedUser(t *testing.T) {
	env := newTestEnv(t, DefaultTemplateOptions())
	ctx := context.Background()
	id := env.register(t, "alice@x.com", "alice")

	token, err := env.tokens.IssueReset(id)
	require.NoError(t, err)

	_, err = env.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	require.NoError(t, err)
	_, err = store.NewUserRepository(env.db).GetByID(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)

	err = env.auth.ConfirmPasswordReset(ctx, token, "pw2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
