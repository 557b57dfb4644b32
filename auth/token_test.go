package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-hub/domain"
)

const testSecret = "test-secret-key"

func TestVerifier_ValidToken(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier(testSecret)

	token, err := GenerateToken(testSecret, "alice", "Alice", time.Hour)
	req.NoError(err)

	identity, err := verifier.Verify(context.Background(), token)
	req.NoError(err)
	req.Equal(domain.UserID("alice"), identity.UserID)
	req.Equal("Alice", identity.DisplayName)
}

func TestVerifier_WrongSecret(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier(testSecret)

	token, err := GenerateToken("another-secret", "alice", "Alice", time.Hour)
	req.NoError(err)

	_, err = verifier.Verify(context.Background(), token)
	req.Error(err)
}

func TestVerifier_ExpiredToken(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier(testSecret)

	token, err := GenerateToken(testSecret, "alice", "Alice", -time.Minute)
	req.NoError(err)

	_, err = verifier.Verify(context.Background(), token)
	req.Error(err)
}

func TestVerifier_MissingUserID(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier(testSecret)

	token, err := GenerateToken(testSecret, "", "Nameless", time.Hour)
	req.NoError(err)

	_, err = verifier.Verify(context.Background(), token)
	req.Error(err)
}

func TestVerifier_Garbage(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier(testSecret)

	_, err := verifier.Verify(context.Background(), "not-a-jwt")
	req.Error(err)
}
