package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, secret, subject, issuer string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func requestWithToken(token string) *http.Request {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestVerifyToken(t *testing.T) {
	Init(&Config{JWTSecret: testSecret})

	subject, err := VerifyToken(requestWithToken(mintToken(t, testSecret, "user-42", "")))
	require.NoError(t, err)
	assert.Equal(t, "user-42", subject)
}

func TestVerifyTokenErrors(t *testing.T) {
	Init(&Config{JWTSecret: testSecret})

	_, err := VerifyToken(requestWithToken(""))
	assert.ErrorContains(t, err, "no authorization header")

	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	_, err = VerifyToken(r)
	assert.ErrorContains(t, err, "invalid authorization header format")

	_, err = VerifyToken(requestWithToken(mintToken(t, "wrong-secret", "user-42", "")))
	assert.ErrorContains(t, err, "invalid token")

	_, err = VerifyToken(requestWithToken(mintToken(t, testSecret, "", "")))
	assert.ErrorContains(t, err, "token has no subject")
}

func TestVerifyTokenIssuer(t *testing.T) {
	Init(&Config{JWTSecret: testSecret, Issuer: "promptvault-auth"})

	_, err := VerifyToken(requestWithToken(mintToken(t, testSecret, "user-42", "promptvault-auth")))
	assert.NoError(t, err)

	_, err = VerifyToken(requestWithToken(mintToken(t, testSecret, "user-42", "someone-else")))
	assert.Error(t, err)
}
