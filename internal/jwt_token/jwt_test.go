package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "phonecheck/pkg/domain-errors"
)

const testKey = "test-signing-key-0123456789abcdef"

func newService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService(testKey, "phonecheck", "phonecheck-api")
	require.NoError(t, err)
	return svc
}

func Test_NewJWTService_RejectsWeakKey(t *testing.T) {
	_, err := NewJWTService("short", "phonecheck", "phonecheck-api")
	require.ErrorIs(t, err, ErrWeakSigningKey)
}

func Test_GenerateToken(t *testing.T) {
	svc := newService(t)

	token, err := svc.GenerateToken("ops-dashboard", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-dashboard", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_GenerateToken_RequiresSubject(t *testing.T) {
	_, err := newService(t).GenerateToken("  ", time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := newService(t).ValidateToken("invalid-token-string")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := newService(t)
	token, err := svc.GenerateToken("ops", -time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func Test_ValidateToken_WrongAudienceOrKey(t *testing.T) {
	svc := newService(t)
	token, err := svc.GenerateToken("ops", time.Hour)
	require.NoError(t, err)

	other, err := NewJWTService(testKey, "phonecheck", "someone-else")
	require.NoError(t, err)
	_, err = other.ValidateToken(token)
	assert.Error(t, err)

	otherKey, err := NewJWTService("another-signing-key-0123456789abc", "phonecheck", "phonecheck-api")
	require.NoError(t, err)
	_, err = otherKey.ValidateToken(token)
	assert.Error(t, err)
}

func Test_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	svc := newService(t)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  "ops",
		Issuer:   "phonecheck",
		Audience: []string{"phonecheck-api"},
	}})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func Test_Validator(t *testing.T) {
	svc := newService(t)
	token, err := svc.GenerateToken("ops", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.NotEmpty(t, claims.TokenID)
}
