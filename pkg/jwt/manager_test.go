package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/config"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func TestManagerRoundTrip(t *testing.T) {
	m, err := NewManager(config.JWTConfig{Secret: "s3cret", Issuer: "timetable-api", Expiration: time.Hour})
	require.NoError(t, err)

	token, expires, err := m.Generate("u1", models.RoleTeacher, "T1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, "T1", claims.TeacherID)
}

func TestManagerRejectsForeignAndExpiredTokens(t *testing.T) {
	m, err := NewManager(config.JWTConfig{Secret: "s3cret", Issuer: "timetable-api", Expiration: time.Minute})
	require.NoError(t, err)
	other, err := NewManager(config.JWTConfig{Secret: "other", Issuer: "timetable-api"})
	require.NoError(t, err)

	token, _, err := other.Generate("u1", models.RoleAdmin, "")
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := m.Generate("u1", models.RoleAdmin, "")
	require.NoError(t, err)
	m.now = time.Now
	_, err = m.Parse(stale)
	require.Error(t, err)
	assert.Equal(t, "token expired", appErrors.FromError(err).Message)

	_, err = NewManager(config.JWTConfig{})
	assert.Error(t, err)
}
