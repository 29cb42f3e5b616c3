package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrNoJWKS       = errors.New("no JWKS URL provided")
)

// StandardClaims represents the claims we read from an identity provider
// token. The core only ever needs an opaque user id out of these.
type StandardClaims struct {
	Sub    string `json:"sub"`
	UserId string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenValidator validates an identity-provider token and extracts the
// opaque user id the notification core keys everything on.
type TokenValidator interface {
	ExtractUserID(tokenString string) (string, error)
}
