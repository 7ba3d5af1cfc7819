package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACIssueAndValidate(t *testing.T) {
	m := NewHMACManager([]byte("s3cret"), "community")

	token, err := m.Issue("u-1", "Ada", "ada@example.com", time.Minute)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UID())
	assert.Equal(t, "Ada", claims.DisplayName())
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestValidateTokenFailures(t *testing.T) {
	m := NewHMACManager([]byte("s3cret"), "community")
	other := NewHMACManager([]byte("other"), "community")
	wrongIssuer := NewHMACManager([]byte("s3cret"), "elsewhere")

	expired, err := m.Issue("u-1", "Ada", "", -time.Minute)
	require.NoError(t, err)
	foreign, err := other.Issue("u-1", "Ada", "", time.Minute)
	require.NoError(t, err)
	misissued, err := wrongIssuer.Issue("u-1", "Ada", "", time.Minute)
	require.NoError(t, err)

	noSubject, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    "community",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"expired", expired, ErrExpiredToken},
		{"wrong key", foreign, ErrInvalidToken},
		{"wrong issuer", misissued, ErrInvalidToken},
		{"no subject", noSubject, ErrMissingSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRSAManagerFromFiles(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	signer, err := NewManager(Config{PublicKeyFile: pubPath, PrivateKeyFile: privPath})
	require.NoError(t, err)
	verifier, err := NewManager(Config{PublicKeyFile: pubPath})
	require.NoError(t, err)

	token, err := signer.Issue("u-9", "Grace", "grace@example.com", time.Minute)
	require.NoError(t, err)

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-9", claims.UID())

	_, err = verifier.Issue("u-9", "", "", time.Minute)
	assert.ErrorIs(t, err, ErrNoSigningKey)

	// An HS256 token must not pass an RS256 verifier.
	hmacToken, err := NewHMACManager([]byte("x"), "").Issue("u-9", "", "", time.Minute)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(hmacToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewManagerRequiresKey(t *testing.T) {
	_, err := NewManager(Config{})
	assert.Error(t, err)
}
