package auth

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/models"
)

type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
	TypeReset   TokenType = "reset"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	Type TokenType `json:"typ"`
	Role string    `json:"role,omitempty"`
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func NewTokenManager(cfg config.JWTConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	return &TokenManager{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		resetTTL:   cfg.ResetTTL,
		now:        time.Now,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *TokenManager) claims(subject string, typ TokenType, ttl time.Duration) *Claims {
	now := m.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: typ,
	}
}

func (m *TokenManager) sign(c *Claims, key []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
}

func (m *TokenManager) IssueAccess(u *models.User) (string, error) {
	c := m.claims(u.ID, TypeAccess, m.accessTTL)
	c.Role = string(u.Role())
	return m.sign(c, m.secret)
}

// IssueRefresh returns the signed token and its claims; the jti is what
// gets revoked on rotation.
func (m *TokenManager) IssueRefresh(u *models.User) (string, *Claims, error) {
	c := m.claims(u.ID, TypeRefresh, m.refreshTTL)
	s, err := m.sign(c, m.secret)
	return s, c, err
}

// Parse verifies an access or refresh token and its type.
func (m *TokenManager) Parse(raw string, want TokenType) (*Claims, error) {
	return m.parse(raw, want, m.secret)
}

func (m *TokenManager) parse(raw string, want TokenType, key []byte) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	c := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, c, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil || tok == nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if c.Type != want || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// Reset tokens are keyed with the secret plus the user's current password
// hash, so changing the password invalidates every outstanding link.
func (m *TokenManager) IssueReset(u *models.User) (uid, token string, err error) {
	c := m.claims(u.ID, TypeReset, m.resetTTL)
	token, err = m.sign(c, m.resetKey(u.PasswordHash))
	if err != nil {
		return "", "", err
	}
	return EncodeUID(u.ID), token, nil
}

func (m *TokenManager) VerifyReset(uid, token string, u *models.User) error {
	c, err := m.parse(token, TypeReset, m.resetKey(u.PasswordHash))
	if err != nil {
		return err
	}
	if c.Subject != u.ID || EncodeUID(c.Subject) != uid {
		return ErrInvalidToken
	}
	return nil
}

func (m *TokenManager) resetKey(passwordHash string) []byte {
	k := make([]byte, 0, len(m.secret)+len(passwordHash))
	k = append(k, m.secret...)
	return append(k, passwordHash...)
}

func EncodeUID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func DecodeUID(uid string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil || len(b) == 0 {
		return "", ErrInvalidToken
	}
	return string(b), nil
}
