package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/domain/user"
)

// ErrInvalidToken is the only error Verify* returns. Bad signature, bad
// payload, wrong kind and expiry are indistinguishable to callers so the
// API never leaks which check failed.
var ErrInvalidToken = errors.New("invalid token")

const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

type Claims struct {
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	JTI       string `json:"jti"`
	jwt.RegisteredClaims
}

// UserID decodes the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}

type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(secret string, accessTTL time.Duration, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (m *Manager) GenerateAccessToken(u user.User) (string, error) {
	return m.generate(u, TokenKindAccess, m.accessTTL)
}

func (m *Manager) GenerateRefreshToken(u user.User) (string, error) {
	return m.generate(u, TokenKindRefresh, m.refreshTTL)
}

func (m *Manager) generate(u user.User, kind string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()

	claims := Claims{
		Email:     u.Email,
		TokenType: kind,
		JTI:       uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   strconv.FormatInt(u.ID, 10),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) parseAndValidate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256

		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	claims, err := m.parseAndValidate(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenKindAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	claims, err := m.parseAndValidate(tokenStr)

	if err != nil {
		return nil, err
	}

	if claims.TokenType != TokenKindRefresh {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
