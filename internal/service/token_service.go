package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/escolaris/academia-api/internal/models"
	appErrors "github.com/escolaris/academia-api/pkg/errors"
)

// TokenService validates the identity tokens the external identity provider
// issues and mints them for tests and tooling.
type TokenService struct {
	secret     []byte
	expiration time.Duration
	clock      Clock
}

// NewTokenService constructs the service.
func NewTokenService(secret string, expiration time.Duration, clock Clock) *TokenService {
	if clock == nil {
		clock = SystemClock()
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), expiration: expiration, clock: clock}
}

// Issue signs a token carrying the tenant, actor and role claims.
func (s *TokenService) Issue(schoolID, userID, role string) (string, error) {
	now := s.clock.Now()
	claims := &models.JWTClaims{
		SchoolID: schoolID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return signed, nil
}

// Validate parses and verifies a token, returning its claims.
func (s *TokenService) Validate(raw string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	if claims.SchoolID == "" || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token missing tenant or subject")
	}
	return claims, nil
}
