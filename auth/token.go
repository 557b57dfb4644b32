// Package auth verifies the credential presented during the websocket
// handshake. Tokens are issued by the identity provider; this engine
// only validates them.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-hub/contract"
	"chat-hub/domain"
)

// Claims defines the data stored inside the JWT.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 signatures against a shared secret loaded
// from configuration.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) Verifier {
	return Verifier{secret: []byte(secret)}
}

// Verify parses and validates the signature and expiration of a JWT
// string and resolves it to the identity it carries.
func (v Verifier) Verify(_ context.Context, credential string) (contract.Identity, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return contract.Identity{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return contract.Identity{}, jwt.ErrSignatureInvalid
	}
	if claims.UserID == "" {
		return contract.Identity{}, fmt.Errorf("token carries no user id")
	}
	return contract.Identity{
		UserID:      domain.UserID(claims.UserID),
		DisplayName: claims.DisplayName,
	}, nil
}

// GenerateToken creates a signed JWT for a user. Used by tests and dev
// tooling; production tokens come from the identity provider.
func GenerateToken(secret, userID, displayName string, lifetime time.Duration) (string, error) {
	claims := &Claims{
		UserID:      userID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-hub",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
