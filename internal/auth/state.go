package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrNoStateSecret = errors.New("OAUTH_STATE_SECRET is not set")
	ErrInvalidState  = errors.New("invalid OAuth state")
)

const defaultStateTTL = 10 * time.Minute

// newState подписывает одноразовый state для редиректа в Square
func newState(secret string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrNoStateSecret
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// checkState проверяет подпись и срок state из callback
func checkState(secret string, state string) error {
	if secret == "" {
		return ErrNoStateSecret
	}
	if state == "" {
		return ErrInvalidState
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(state, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidState
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidState
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return ErrInvalidState
	}
	return nil
}
