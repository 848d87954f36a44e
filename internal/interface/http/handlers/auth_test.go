package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuth(t *testing.T) *AdminAuth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAdminAuth("", []string{string(hash), ""}, "jwt-secret")
}

func serve(a *AdminAuth, header, value string) int {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	a.Middleware(ok).ServeHTTP(rec, req)
	return rec.Code
}

func TestAdminAuth_APIKey(t *testing.T) {
	a := newAuth(t)

	assert.True(t, a.Enabled())
	assert.True(t, a.ValidKey("secret-key"))
	assert.True(t, a.ValidKey("secret-key"), "cached verification")
	assert.False(t, a.ValidKey("other"))
	assert.False(t, a.ValidKey(""))

	assert.Equal(t, http.StatusNoContent, serve(a, "X-API-Key", "secret-key"))
	assert.Equal(t, http.StatusUnauthorized, serve(a, "X-API-Key", "nope"))
	assert.Equal(t, http.StatusUnauthorized, serve(a, "", ""))
}

func TestAdminAuth_BearerToken(t *testing.T) {
	a := newAuth(t)

	token, err := a.IssueToken("ops", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, a.ValidToken(token))
	assert.Equal(t, http.StatusNoContent, serve(a, "Authorization", "Bearer "+token))

	expired, err := a.IssueToken("ops", -time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, a.ValidToken(expired), ErrInvalidToken)
	assert.Equal(t, http.StatusUnauthorized, serve(a, "Authorization", "Bearer "+expired))

	other := NewAdminAuth("", nil, "different-secret")
	foreign, err := other.IssueToken("ops", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, a.ValidToken(foreign), ErrInvalidToken)
}

func TestAdminAuth_RejectsNonAdminRole(t *testing.T) {
	a := newAuth(t)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "student",
		"role": "viewer",
		"exp":  time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("jwt-secret"))
	require.NoError(t, err)

	assert.ErrorIs(t, a.ValidToken(raw), ErrInvalidToken)
}

func TestAdminAuth_Disabled(t *testing.T) {
	a := NewAdminAuth("X-Admin", nil, "")

	assert.False(t, a.Enabled())
	_, err := a.IssueToken("ops", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, http.StatusUnauthorized, serve(a, "X-Admin", "anything"))
}

func TestHashKey(t *testing.T) {
	h, err := HashKey("k1")
	require.NoError(t, err)

	a := NewAdminAuth("", []string{h}, "")
	assert.True(t, a.ValidKey("k1"))
}
