package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrMissingSubject = errors.New("token has no subject")
	ErrNoSigningKey   = errors.New("no signing key configured")
)

// Claims represents JWT claims. The user id is read from user_id and
// falls back to the registered sub claim.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}

// UID returns the stable user identifier carried by the token.
func (c *Claims) UID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// DisplayName prefers name over username.
func (c *Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Username
}

// Config selects the signing scheme. A non-empty Secret means HS256,
// otherwise RS256 keys are loaded from the PEM files.
type Config struct {
	Secret         string        `mapstructure:"secret"`
	PublicKeyFile  string        `mapstructure:"public_key_file"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	Leeway         time.Duration `mapstructure:"leeway"`
}

// Manager verifies tokens and, when it holds a signing key, issues them.
type Manager struct {
	method    jwt.SigningMethod
	verifyKey interface{}
	signKey   interface{}
	issuer    string
	audience  string
	leeway    time.Duration
}

// NewManager builds a Manager from config.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Secret != "" {
		m := NewHMACManager([]byte(cfg.Secret), cfg.Issuer)
		m.audience = cfg.Audience
		m.leeway = cfg.Leeway
		return m, nil
	}

	if cfg.PublicKeyFile == "" {
		return nil, errors.New("jwt: either secret or public_key_file must be set")
	}

	pemBytes, err := os.ReadFile(cfg.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	var priv *rsa.PrivateKey
	if cfg.PrivateKeyFile != "" {
		pemBytes, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		priv, err = jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
	}

	m := NewRSAManager(priv, pub, cfg.Issuer)
	m.audience = cfg.Audience
	m.leeway = cfg.Leeway
	return m, nil
}

// NewHMACManager creates an HS256 manager.
func NewHMACManager(secret []byte, issuer string) *Manager {
	return &Manager{
		method:    jwt.SigningMethodHS256,
		verifyKey: secret,
		signKey:   secret,
		issuer:    issuer,
	}
}

// NewRSAManager creates an RS256 manager. priv may be nil for verify-only use.
func NewRSAManager(priv *rsa.PrivateKey, pub *rsa.PublicKey, issuer string) *Manager {
	m := &Manager{
		method:    jwt.SigningMethodRS256,
		verifyKey: pub,
		issuer:    issuer,
	}
	if priv != nil {
		m.signKey = priv
	}
	return m
}

// Issue signs a token for the given user.
func (m *Manager) Issue(userID, name, email string, ttl time.Duration) (string, error) {
	if m.signKey == nil {
		return "", ErrNoSigningKey
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Email:  email,
		Name:   name,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	return jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
}

// ValidateToken validates a token and returns claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{m.method.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	if m.leeway > 0 {
		opts = append(opts, jwt.WithLeeway(m.leeway))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.verifyKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UID() == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}
