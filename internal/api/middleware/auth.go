package middleware

import (
	"net/http"

	"github.com/isdelr/stencil-be/internal/api/respond"
	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/rs/zerolog"
)

// TokenVerifier resolves an access token to its subject.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// OptionalAuth resolves the caller from an optional bearer token. Requests
// without an Authorization header proceed as anonymous; a header carrying a
// bad token is rejected.
func OptionalAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(tokens, false, false)
}

// RequireAuth rejects requests that do not carry a valid bearer token.
func RequireAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(tokens, true, false)
}

// WebSocketAuth is OptionalAuth that also accepts the token in the "token"
// query parameter, since browsers cannot set headers on upgrade requests.
func WebSocketAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(tokens, false, true)
}

func authenticate(tokens TokenVerifier, required, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r)
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			if token == "" && allowQuery {
				token = r.URL.Query().Get("token")
			}

			caller := auth.Anonymous()
			if token != "" {
				userID, err := tokens.Verify(token)
				if err != nil {
					respond.Error(w, r, err)
					return
				}
				caller = auth.Authenticated(userID)
				zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Int64("user_id", userID)
				})
			} else if required {
				respond.Fail(w, http.StatusUnauthorized, respond.CodeInvalidToken, "Not authenticated")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}
