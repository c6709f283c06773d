package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestVerifierAcceptsAccessToken(t *testing.T) {
	key := newKey(t)
	signer := NewSigner(key, "auth-service")
	verifier := NewVerifierFromKey(&key.PublicKey, "auth-service")

	token, err := signer.AccessToken("user-1", "alice", []string{"user"}, time.Minute)
	require.NoError(t, err)

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestVerifierFromPEM(t *testing.T) {
	key := newKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	verifier, err := NewVerifier(pemBytes, "")
	require.NoError(t, err)

	token, err := NewSigner(key, "anyone").AccessToken("user-2", "bob", nil, time.Minute)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(token)
	assert.NoError(t, err)

	_, err = NewVerifier([]byte("not a key"), "")
	assert.Error(t, err)
}

func TestVerifierRejects(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	signer := NewSigner(key, "auth-service")
	verifier := NewVerifierFromKey(&key.PublicKey, "auth-service")

	t.Run("expired", func(t *testing.T) {
		token, err := signer.AccessToken("user-1", "alice", nil, -time.Minute)
		require.NoError(t, err)
		_, err = verifier.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		token, err := NewSigner(other, "auth-service").AccessToken("user-1", "alice", nil, time.Minute)
		require.NoError(t, err)
		_, err = verifier.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := NewSigner(key, "someone-else").AccessToken("user-1", "alice", nil, time.Minute)
		require.NoError(t, err)
		_, err = verifier.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("refresh token", func(t *testing.T) {
		now := time.Now()
		token, err := signer.Sign(&Claims{
			RegisteredClaims: gojwt.RegisteredClaims{
				Issuer:    "auth-service",
				ExpiresAt: gojwt.NewNumericDate(now.Add(time.Minute)),
			},
			UserID: "user-1",
			Type:   TypeRefresh,
		})
		require.NoError(t, err)
		_, err = verifier.ValidateToken(token)
		assert.ErrorIs(t, err, ErrWrongType)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.ValidateToken("a.b.c")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
