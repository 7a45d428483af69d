package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failures are surfaced as distinct sentinels so callers can tell
// an expired token from a tampered or garbled one. HTTP boundaries collapse all
// of them into a uniform 401.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
)

// JWTManager signs and verifies the access/refresh token pair. The two token
// kinds use distinct secrets and distinct expiry windows, both supplied by
// configuration.
type JWTManager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}
}

// AccessClaims carries the subject identity plus the minimal profile fields
// handlers need without a store round-trip.
type AccessClaims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	jwt.RegisteredClaims
}

// RefreshClaims carries the subject identity only.
type RefreshClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func registeredClaims(subject string, ttl time.Duration) (jwt.RegisteredClaims, time.Time) {
	now := time.Now()
	exp := now.Add(ttl)
	return jwt.RegisteredClaims{
		// jti makes every issued token unique even within the same second,
		// which refresh rotation relies on
		ID:        uuid.NewString(),
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}, exp
}

func (m *JWTManager) GenerateAccessToken(userID, username, email, fullName string) (string, time.Time, error) {
	rc, exp := registeredClaims(userID, m.AccessTTL)
	claims := &AccessClaims{
		UserID:           userID,
		Username:         username,
		Email:            email,
		FullName:         fullName,
		RegisteredClaims: rc,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.AccessSecret)
	return s, exp, err
}

func (m *JWTManager) GenerateRefreshToken(userID string) (string, time.Time, error) {
	rc, exp := registeredClaims(userID, m.RefreshTTL)
	claims := &RefreshClaims{UserID: userID, RegisteredClaims: rc}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.RefreshSecret)
	return s, exp, err
}

func (m *JWTManager) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parseInto(tokenStr, claims, m.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *JWTManager) ParseRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parseInto(tokenStr, claims, m.RefreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func parseInto(tokenStr string, claims jwt.Claims, secret []byte) error {
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenSignature
		}
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return ErrTokenSignature
		default:
			return err
		}
	}
	if !tkn.Valid {
		return ErrTokenSignature
	}
	return nil
}
