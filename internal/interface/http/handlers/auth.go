// Package handlers contains reusable HTTP middleware and health checks.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// ErrInvalidToken is returned for bearer tokens that fail verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// AdminAuth guards write endpoints. A request passes with either an API key
// matching one of the configured bcrypt hashes, or an HS256 bearer token
// signed with the shared secret and carrying the "admin" role.
type AdminAuth struct {
	headerName string
	jwtSecret  []byte

	mu        sync.RWMutex
	keyHashes [][]byte

	// bcrypt is slow on purpose; verified keys are remembered.
	verified map[string]struct{}
}

// NewAdminAuth creates an authenticator. keyHashes are bcrypt hashes of the
// accepted API keys; an empty jwtSecret disables bearer tokens.
func NewAdminAuth(headerName string, keyHashes []string, jwtSecret string) *AdminAuth {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	a := &AdminAuth{
		headerName: headerName,
		verified:   make(map[string]struct{}),
	}
	if jwtSecret != "" {
		a.jwtSecret = []byte(jwtSecret)
	}
	for _, h := range keyHashes {
		if h != "" {
			a.keyHashes = append(a.keyHashes, []byte(h))
		}
	}
	return a
}

// Enabled reports whether any credential is configured.
func (a *AdminAuth) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keyHashes) > 0 || len(a.jwtSecret) > 0
}

// HashKey returns the bcrypt hash to configure for a plain API key.
func HashKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(h), nil
}

// ValidKey checks a plain API key against the configured hashes.
func (a *AdminAuth) ValidKey(key string) bool {
	if key == "" {
		return false
	}

	a.mu.RLock()
	_, ok := a.verified[key]
	hashes := a.keyHashes
	a.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			a.mu.Lock()
			a.verified[key] = struct{}{}
			a.mu.Unlock()
			return true
		}
	}
	return false
}

// IssueToken signs an admin token valid for ttl.
func (a *AdminAuth) IssueToken(subject string, ttl time.Duration) (string, error) {
	if len(a.jwtSecret) == 0 {
		return "", ErrInvalidToken
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": "admin",
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// ValidToken verifies a bearer token.
func (a *AdminAuth) ValidToken(raw string) error {
	if len(a.jwtSecret) == 0 || raw == "" {
		return ErrInvalidToken
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["role"] != "admin" {
		return ErrInvalidToken
	}
	return nil
}

// Middleware rejects requests without a valid credential. With nothing
// configured every request is rejected.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get(a.headerName); key != "" {
			if a.ValidKey(key) {
				next.ServeHTTP(w, r)
				return
			}
			writeAuthError(w, "invalid_api_key", "Invalid API key")
			return
		}

		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			if a.ValidToken(strings.TrimPrefix(auth, "Bearer ")) == nil {
				next.ServeHTTP(w, r)
				return
			}
			writeAuthError(w, "invalid_token", "Invalid bearer token")
			return
		}

		writeAuthError(w, "missing_credentials", "API key or bearer token is required")
	})
}

func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"success":false,"error":{"code":%q,"message":%q}}`, code, message)
}
