package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestIssueAndResolve(t *testing.T) {
	id := uuid.New()
	token, err := NewTokenIssuer(testSecret, time.Minute).Issue(id, RoleMentor)
	require.NoError(t, err)

	caller, err := NewTokenResolver(testSecret).ResolveCaller(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, id, caller.ID)
	assert.True(t, caller.IsMentor())
	assert.False(t, caller.IsStudent())
}

func TestResolveRejectsBadTokens(t *testing.T) {
	resolver := NewTokenResolver(testSecret)
	id := uuid.New()

	wrongSecret, err := NewTokenIssuer("other-secret", time.Minute).Issue(id, RoleStudent)
	require.NoError(t, err)

	expired := signClaims(t, Claims{
		Role: RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"wrong secret":   wrongSecret,
		"expired":        expired,
		"bad subject":    signClaims(t, Claims{Role: RoleStudent, RegisteredClaims: jwt.RegisteredClaims{Subject: "42"}}),
		"unknown role":   signClaims(t, Claims{Role: "Admin", RegisteredClaims: jwt.RegisteredClaims{Subject: id.String()}}),
		"missing role":   signClaims(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: id.String()}}),
		"none algorithm": noneToken(t, id),
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := resolver.ResolveCaller(context.Background(), token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	_, err := NewTokenIssuer(testSecret, time.Minute).Issue(uuid.New(), Role("Admin"))
	assert.Error(t, err)
}

func signClaims(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func noneToken(t *testing.T, id uuid.UUID) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             RoleMentor,
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.String()},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}
