package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JoinTokenIssuer signs the short-lived tokens embedded in QR join links, so
// a scanned link proves it came from this deployment and names one room.
type JoinTokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

type joinClaims struct {
	JoinCode string `json:"joinCode"`
	jwt.RegisteredClaims
}

// NewJoinTokenIssuer creates a join token issuer with the given signing secret and token lifetime
func NewJoinTokenIssuer(secret string, ttl time.Duration) *JoinTokenIssuer {
	return &JoinTokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue signs a join token for the room
func (i *JoinTokenIssuer) Issue(joinCode string) (string, error) {
	now := time.Now()
	claims := joinClaims{
		JoinCode: joinCode,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign join token: %w", err)
	}
	return signed, nil
}

// Verify validates a join token and returns the room code it was issued for
func (i *JoinTokenIssuer) Verify(tokenString string) (string, error) {
	var claims joinClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid join token: %w", err)
	}
	if !token.Valid || claims.JoinCode == "" {
		return "", fmt.Errorf("invalid join token")
	}
	return claims.JoinCode, nil
}
