// Package security provides JWT token utilities
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateEnvironmentToken creates a JWT the SDK presents on every call,
// scoped to one environment and one external user.
func GenerateEnvironmentToken(environmentID, externalUserID, jwtSecret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"environmentId":  environmentID,
		"externalUserId": externalUserID,
		"iat":            time.Now().UTC().Unix(),
		"exp":            time.Now().UTC().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// EnvironmentFromClaims extracts the environment and user the token was
// minted for.
func EnvironmentFromClaims(claims jwt.MapClaims) (environmentID, externalUserID string, ok bool) {
	environmentID, okEnv := claims["environmentId"].(string)
	externalUserID, okUser := claims["externalUserId"].(string)
	return environmentID, externalUserID, okEnv && okUser
}
