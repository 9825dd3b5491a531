package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/isdelr/stencil-be/internal/database"
	"github.com/isdelr/stencil-be/internal/mail"
	"github.com/isdelr/stencil-be/internal/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

type published struct {
	action  string
	payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(action string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{action: action, payload: payload})
}

func (p *fakePublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.action)
	}
	return out
}

type testEnv struct {
	db        *sql.DB
	users     *UserService
	events    *EventService
	tokens    *auth.TokenService
	mailer    *fakeMailer
	publisher *fakePublisher
	auth      *AuthService
	templates *TemplateService
}

func newTestEnv(t *testing.T, opts TemplateOptions) *testEnv {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	tokens, err := auth.NewTokenService([]byte("test-secret"), time.Hour, 15*time.Minute)
	require.NoError(t, err)

	env := &testEnv{
		db:        db,
		users:     NewUserService(store.NewUserRepository(db), WithHashCost(bcrypt.MinCost)),
		events:    NewEventService(store.NewEventRepository(db)),
		tokens:    tokens,
		mailer:    &fakeMailer{},
		publisher: &fakePublisher{},
	}
	env.auth = NewAuthService(env.users, tokens, env.mailer, env.events, "")
	env.templates = NewTemplateService(store.NewTemplateRepository(db), env.events, env.publisher, opts)
	return env
}

func (e *testEnv) register(t *testing.T, email, username string) int64 {
	t.Helper()
	user, err := e.users.Register(context.Background(), RegisterInput{
		Email:    email,
		Username: username,
		FullName: username + " tester",
		Password: "pw1",
	})
	require.NoError(t, err)
	return user.ID
}
