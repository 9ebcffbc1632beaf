package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt"
)

const (
	userIdClaim      = "user-id"
	displayNameClaim = "display-name"
)

// SessionClaims is the identity the session collaborator embedded in the
// token. The core only needs to know who the local user is; issuing and
// refreshing tokens happens elsewhere.
type SessionClaims struct {
	UserId      string
	DisplayName string
}

func ParseSessionClaims(tokenString string, signingKey []byte) (SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})
	if err != nil {
		return SessionClaims{}, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return SessionClaims{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return SessionClaims{}, fmt.Errorf("invalid token claims")
	}

	userId, ok := claims[userIdClaim].(string)
	if !ok || userId == "" {
		return SessionClaims{}, fmt.Errorf("invalid user id claim")
	}

	displayName, _ := claims[displayNameClaim].(string)

	return SessionClaims{
		UserId:      userId,
		DisplayName: displayName,
	}, nil
}
