package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/isdelr/stencil-be/internal/apperr"
)

// Token audiences keep access tokens and password reset tokens from being
// used in place of each other.
const (
	AudienceAccess        = "access"
	AudiencePasswordReset = "password-reset"
)

// Claims defines the JWT claims structure.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 tokens whose subject is a user ID.
// It holds no state besides the signing key and lifetimes.
type TokenService struct {
	secret    []byte
	accessTTL time.Duration
	resetTTL  time.Duration
	now       func() time.Time
}

// NewTokenService creates a TokenService. An accessTTL of zero issues access
// tokens without an expiry claim; reset tokens always expire.
func NewTokenService(secret []byte, accessTTL, resetTTL time.Duration) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signing secret is required")
	}
	if accessTTL < 0 {
		return nil, fmt.Errorf("access token ttl must not be negative, got %s", accessTTL)
	}
	if resetTTL <= 0 {
		return nil, fmt.Errorf("reset token ttl must be positive, got %s", resetTTL)
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenService{secret: key, accessTTL: accessTTL, resetTTL: resetTTL, now: time.Now}, nil
}

// Issue creates an access token for the given user.
func (s *TokenService) Issue(subject int64) (string, error) {
	return s.sign(subject, AudienceAccess, s.accessTTL)
}

// Verify validates an access token and returns its subject.
func (s *TokenService) Verify(token string) (int64, error) {
	return s.parse(token, AudienceAccess)
}

// IssueReset creates a short-lived password reset token for the given user.
func (s *TokenService) IssueReset(subject int64) (string, error) {
	return s.sign(subject, AudiencePasswordReset, s.resetTTL)
}

// VerifyReset validates a password reset token and returns its subject.
func (s *TokenService) VerifyReset(token string) (int64, error) {
	return s.parse(token, AudiencePasswordReset)
}

func (s *TokenService) sign(subject int64, audience string, ttl time.Duration) (string, error) {
	if subject < 1 {
		return "", fmt.Errorf("invalid token subject %d", subject)
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatInt(subject, 10),
			Audience: jwt.ClaimStrings{audience},
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *TokenService) parse(tokenStr, audience string) (int64, error) {
	claims := &Claims{}
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}
	token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, apperr.ErrInvalidToken
	}

	subject, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || subject < 1 {
		return 0, fmt.Errorf("%w: bad subject", apperr.ErrInvalidToken)
	}
	return subject, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
// It returns "" and no error when the header is absent.
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("%w: malformed authorization header", apperr.ErrInvalidToken)
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", fmt.Errorf("%w: empty bearer token", apperr.ErrInvalidToken)
	}
	return token, nil
}
