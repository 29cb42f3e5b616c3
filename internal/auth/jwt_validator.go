package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/jwk"
)

// JWTTokenValidator validates JWT tokens against a JWKS endpoint. Used when
// the deployment fronts a generic OIDC identity provider instead of Firebase.
type JWTTokenValidator struct {
	mu      sync.RWMutex
	keySet  jwk.Set
	jwksURL string
	devMode bool
}

// NewJWTTokenValidator creates a validator backed by the given JWKS URL.
// An empty URL enables development mode: tokens are parsed but not verified.
func NewJWTTokenValidator(jwksURL string) (*JWTTokenValidator, error) {
	if jwksURL == "" {
		return &JWTTokenValidator{devMode: true}, nil
	}

	keySet, err := jwk.Fetch(context.Background(), jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}

	return &JWTTokenValidator{
		keySet:  keySet,
		jwksURL: jwksURL,
	}, nil
}

// RefreshKeys refetches the JWKS. Called when a token references an unknown
// key id, which happens on provider key rotation.
func (v *JWTTokenValidator) RefreshKeys() error {
	if v.jwksURL == "" {
		return ErrNoJWKS
	}

	keySet, err := jwk.Fetch(context.Background(), v.jwksURL)
	if err != nil {
		return fmt.Errorf("failed to refresh JWKS from %s: %w", v.jwksURL, err)
	}

	v.mu.Lock()
	v.keySet = keySet
	v.mu.Unlock()
	return nil
}

// ExtractUserID validates the token and returns the stable user identifier,
// preferring sub, then user_id, then email.
func (v *JWTTokenValidator) ExtractUserID(tokenString string) (string, error) {
	if v.devMode {
		token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &StandardClaims{})
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		claims, ok := token.Claims.(*StandardClaims)
		if !ok {
			return "", ErrInvalidToken
		}
		return userIDFromClaims(claims)
	}

	rawKey, err := v.lookupKey(tokenString)
	if err != nil {
		return "", err
	}

	validatedToken, err := jwt.ParseWithClaims(
		tokenString,
		&StandardClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return rawKey, nil
		},
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := validatedToken.Claims.(*StandardClaims)
	if !ok || !validatedToken.Valid {
		return "", ErrInvalidToken
	}

	if !claims.VerifyExpiresAt(time.Now(), true) {
		return "", ErrExpiredToken
	}

	return userIDFromClaims(claims)
}

// lookupKey resolves the signing key for the token's kid header, refreshing
// the JWKS once if the kid is unknown.
func (v *JWTTokenValidator) lookupKey(tokenString string) (interface{}, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &StandardClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse token header: %v", ErrInvalidToken, err)
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: token header missing kid", ErrInvalidToken)
	}

	v.mu.RLock()
	key, found := v.keySet.LookupKeyID(kid)
	v.mu.RUnlock()

	if !found {
		if err := v.RefreshKeys(); err != nil {
			return nil, fmt.Errorf("%w: key %s not found and JWKS refresh failed: %v", ErrInvalidToken, kid, err)
		}

		v.mu.RLock()
		key, found = v.keySet.LookupKeyID(kid)
		v.mu.RUnlock()
		if !found {
			return nil, fmt.Errorf("%w: key with ID %s not found", ErrInvalidToken, kid)
		}
	}

	var rawKey interface{}
	if err := key.Raw(&rawKey); err != nil {
		return nil, fmt.Errorf("%w: failed to get raw key: %v", ErrInvalidToken, err)
	}

	return rawKey, nil
}

func userIDFromClaims(claims *StandardClaims) (string, error) {
	if claims.Sub != "" {
		return claims.Sub, nil
	}
	if claims.UserId != "" {
		return claims.UserId, nil
	}
	if claims.Email != "" {
		return claims.Email, nil
	}
	return "", fmt.Errorf("%w: no sub, user_id, or email found in token claims", ErrInvalidToken)
}
