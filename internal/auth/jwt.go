package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const AccessTokenExpiry = 15 * time.Minute

// Claims carries the owner identity issued by the external auth service.
// This service only verifies tokens; it never issues them to end users.
type Claims struct {
	OwnerID   int64  `json:"ownerId"`
	OwnerType string `json:"ownerType"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs claims with the shared secret. Used by tests
// and local tooling; production tokens come from the auth collaborator.
func GenerateAccessToken(ownerID int64, ownerType, name, secret string) (string, error) {
	claims := Claims{
		OwnerID:   ownerID,
		OwnerType: ownerType,
		Name:      name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "nuruplay",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateAccessToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
