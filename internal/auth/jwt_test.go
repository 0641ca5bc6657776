package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() *TokenService {
	return NewTokenService("test-secret-key-for-testing-purposes", 15*time.Minute)
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	service := newTestTokenService()

	token, expiresAt, err := service.Issue("cust-1", "ada@example.com", RoleCustomer)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))

	claims, err := service.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, RoleCustomer, claims.Role)
	assert.False(t, claims.IsOperator())
}

func TestTokenService_Expired(t *testing.T) {
	service := newTestTokenService()
	service.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := service.Issue("cust-1", "", RoleCustomer)
	require.NoError(t, err)

	claims, err := service.Verify(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestTokenService_Invalid(t *testing.T) {
	service := newTestTokenService()

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestTokenService_WrongSignature(t *testing.T) {
	issuer := NewTokenService("secret-key-1", time.Minute)
	verifier := NewTokenService("secret-key-2", time.Minute)

	token, _, err := issuer.Issue("cust-1", "", RoleCustomer)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_NoneAlgorithmRejected(t *testing.T) {
	service := newTestTokenService()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role:             RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"},
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.Verify(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_UnknownRoleRejected(t *testing.T) {
	service := newTestTokenService()

	token, _, err := service.Issue("someone", "", "superuser")
	require.NoError(t, err)

	_, err = service.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaims_CanActFor(t *testing.T) {
	customer := &Claims{Role: RoleCustomer, RegisteredClaims: jwt.RegisteredClaims{Subject: "cust-1"}}
	operator := &Claims{Role: RoleOperator, RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"}}

	assert.True(t, customer.CanActFor("cust-1"))
	assert.False(t, customer.CanActFor("cust-2"))
	assert.True(t, operator.CanActFor("cust-2"))
}
