// Package jwt signs and verifies HS256 bearer tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/config"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// Manager issues and validates access tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewManager builds a Manager from JWT settings.
func NewManager(cfg config.JWTConfig) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	ttl := cfg.Expiration
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: ttl, now: time.Now}, nil
}

// Generate signs a token for the user.
func (m *Manager) Generate(userID string, role models.UserRole, teacherID string) (string, time.Time, error) {
	issuedAt := m.now().UTC()
	expiresAt := issuedAt.Add(m.ttl)
	claims := &models.JWTClaims{
		UserID:    userID,
		Role:      role,
		TeacherID: teacherID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
			IssuedAt:  gojwt.NewNumericDate(issuedAt),
			NotBefore: gojwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates the token and returns its claims.
func (m *Manager) Parse(tokenString string) (*models.JWTClaims, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(m.issuer))
	}

	token, err := gojwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(*gojwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
