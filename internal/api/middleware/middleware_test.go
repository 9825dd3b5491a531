package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/stencil-be/internal/api/respond"
	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/isdelr/stencil-be/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService([]byte("middleware-secret"), time.Hour, time.Minute)
	require.NoError(t, err)
	return tokens
}

// callerEcho reports the resolved caller as {"user_id": n} or {"user_id": 0}.
var callerEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.CallerFromContext(r.Context()).UserID()
	respond.JSON(w, http.StatusOK, map[string]int64{"user_id": id})
})

func decodeError(t *testing.T, w *httptest.ResponseRecorder) respond.ErrorBody {
	t.Helper()
	var body respond.ErrorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestOptionalAuth(t *testing.T) {
	tokens := newTokens(t)
	handler := OptionalAuth(tokens)(callerEcho)
	token, err := tokens.Issue(42)
	require.NoError(t, err)

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":0}`, w.Body.String())
	})

	t.Run("authenticated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":42}`, w.Body.String())
	})

	t.Run("bad token is rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
		assert.Equal(t, respond.CodeInvalidToken, decodeError(t, w).Error)
	})

	t.Run("query token ignored", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?token="+token, nil))
		assert.JSONEq(t, `{"user_id":0}`, w.Body.String())
	})
}

func TestRequireAuth(t *testing.T) {
	tokens := newTokens(t)
	handler := RequireAuth(tokens)(callerEcho)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, respond.CodeInvalidToken, decodeError(t, w).Error)

	reset, err := tokens.IssueReset(7)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+reset)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebSocketAuth_QueryToken(t *testing.T) {
	tokens := newTokens(t)
	token, err := tokens.Issue(9)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	WebSocketAuth(tokens)(callerEcho).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?token="+token, nil))
	assert.JSONEq(t, `{"user_id":9}`, w.Body.String())
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	tokens := newTokens(t)
	token, err := tokens.Issue(5)
	require.NoError(t, err)

	handler := chimw.RequestID(RequestLogger(logger)(OptionalAuth(tokens)(callerEcho)))
	r := httptest.NewRequest(http.MethodGet, "/api/templates/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/templates/me", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(5), entry["user_id"])
	assert.NotEmpty(t, entry["request_id"])
	assert.NotContains(t, buf.String(), token)
}

type recordedRequest struct {
	method, route string
	status        int
}

type fakeRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
	attempts map[string]int
}

func (f *fakeRecorder) ObserveRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{method, route, status})
}

func (f *fakeRecorder) RecordAuthAttempt(flow, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[flow+"/"+outcome]++
}

func TestInstrument_UsesRoutePattern(t *testing.T) {
	rec := &fakeRecorder{}
	r := chi.NewRouter()
	r.Use(Instrument(rec))
	r.Get("/api/templates/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/templates/17", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Len(t, rec.requests, 2)
	assert.Equal(t, recordedRequest{http.MethodGet, "/api/templates/{id}", http.StatusNotFound}, rec.requests[0])
	assert.Equal(t, "unmatched", rec.requests[1].route)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	rec := &fakeRecorder{}
	handler := rl.Middleware("signin", rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1001").Code)

	w := send("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Equal(t, respond.CodeRateLimited, decodeError(t, w).Error)
	assert.Equal(t, 1, rec.attempts["signin/"+metrics.OutcomeRejected])

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1000").Code)
	assert.Equal(t, 2, rl.VisitorCount())

	rl.cleanup(time.Now().Add(3 * time.Minute))
	assert.Equal(t, 0, rl.VisitorCount())
}
