package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolaris/academia-api/internal/models"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	clock := &fixedClock{at: testNow}
	svc := NewTokenService("test-secret", time.Hour, clock)

	raw, err := svc.Issue("school-1", "user-1", models.RoleDirector)
	require.NoError(t, err)

	claims, err := svc.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "school-1", claims.SchoolID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, models.RoleDirector, claims.Role)
	assert.True(t, claims.CanOverrideLock())
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	issuer := NewTokenService("test-secret", time.Hour, &fixedClock{at: testNow})
	raw, err := issuer.Issue("school-1", "user-1", models.RoleTeacher)
	require.NoError(t, err)

	later := NewTokenService("test-secret", time.Hour, &fixedClock{at: testNow.Add(2 * time.Hour)})
	_, err = later.Validate(raw)
	assert.Error(t, err)
}

func TestTokenServiceRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("test-secret", time.Hour, &fixedClock{at: testNow})
	raw, err := issuer.Issue("school-1", "user-1", models.RoleTeacher)
	require.NoError(t, err)

	other := NewTokenService("other-secret", time.Hour, &fixedClock{at: testNow})
	_, err = other.Validate(raw)
	assert.Error(t, err)
}

func TestTokenServiceRejectsMissingTenant(t *testing.T) {
	clock := &fixedClock{at: testNow}
	svc := NewTokenService("test-secret", time.Hour, clock)

	claims := &models.JWTClaims{
		Role: models.RoleTeacher,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(testNow),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.Validate(raw)
	assert.Error(t, err)
}

func TestTeacherCannotOverrideLock(t *testing.T) {
	claims := &models.JWTClaims{Role: models.RoleTeacher}
	assert.False(t, claims.CanOverrideLock())
}
