package jwtinfra

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewProvider_ShortSecret(t *testing.T) {
	_, err := NewProvider("short", time.Hour)
	assert.Error(t, err)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	p, err := NewProvider(testSecret, 24*time.Hour)
	require.NoError(t, err)

	signed, err := p.Sign("u1", "ESTUDIANTE", "alice@example.com")
	require.NoError(t, err)

	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ESTUDIANTE", claims.Role)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
	assert.Equal(t, "ESTUDIANTE", claims.Principal().Role)
}

func TestVerify_Expired(t *testing.T) {
	p, err := NewProvider(testSecret, 24*time.Hour)
	require.NoError(t, err)
	issued := time.Now()
	p.now = func() time.Time { return issued }
	signed, err := p.Sign("u1", "ADMIN", "a@b.com")
	require.NoError(t, err)

	p.now = func() time.Time { return issued.Add(24*time.Hour + time.Minute) }
	_, err = p.Verify(signed)
	assert.Error(t, err)
}

func TestVerify_WrongSecret(t *testing.T) {
	a, err := NewProvider(testSecret, time.Hour)
	require.NoError(t, err)
	b, err := NewProvider("ffffffffffffffffffffffffffffffff", time.Hour)
	require.NoError(t, err)

	signed, err := a.Sign("u1", "ADMIN", "a@b.com")
	require.NoError(t, err)
	_, err = b.Verify(signed)
	assert.Error(t, err)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	p, err := NewProvider(testSecret, time.Hour)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           "u1",
		Role:             "ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.Error(t, err)
}

func TestVerify_Malformed(t *testing.T) {
	p, err := NewProvider(testSecret, time.Hour)
	require.NoError(t, err)
	_, err = p.Verify("not.a.token")
	assert.Error(t, err)
}
