package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuthUserID(t *testing.T) {
	auth := NewAuth("secret")
	id := uuid.New()
	exp := time.Now().Add(time.Hour).Unix()

	got, err := auth.UserID("Bearer " + sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": id.String(), "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	rejected := map[string]string{
		"empty":         "",
		"no scheme":     sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": id.String()}),
		"wrong secret":  "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": id.String()}),
		"wrong method":  "Bearer " + sign(t, jwt.SigningMethodHS512, []byte("secret"), jwt.MapClaims{"sub": id.String()}),
		"expired":       "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": id.String(), "exp": time.Now().Add(-time.Minute).Unix()}),
		"missing sub":   "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"exp": exp}),
		"sub not uuid":  "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "42"}),
		"garbage token": "Bearer abc.def.ghi",
	}
	for name, header := range rejected {
		_, err := auth.UserID(header)
		assert.Error(t, err, name)
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuth("secret")
	id := uuid.New()

	var seen uuid.UUID
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": id.String()}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, id, seen)
}
