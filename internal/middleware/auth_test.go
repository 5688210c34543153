package middleware

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims(userID uint) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": "tester",
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      time.Now().Add(time.Hour).Unix(),
		"jti":      "jti-abc123",
	}
}

func TestParseUserToken(t *testing.T) {
	t.Run("Valid Token", func(t *testing.T) {
		claims, err := ParseUserToken(signToken(t, validClaims(123)), testSecret)
		require.NoError(t, err)
		assert.Equal(t, uint(123), claims.UserID)
		assert.Equal(t, "tester", claims.Username)
		assert.Equal(t, "jti-abc123", claims.JTI)
		assert.Greater(t, claims.ExpireAt, time.Now().Unix())
	})

	t.Run("Expired Token", func(t *testing.T) {
		c := validClaims(123)
		c["exp"] = time.Now().Add(-time.Hour).Unix()
		_, err := ParseUserToken(signToken(t, c), testSecret)
		assert.Error(t, err)
	})

	t.Run("Wrong Issuer", func(t *testing.T) {
		c := validClaims(123)
		c["iss"] = "someone-else"
		_, err := ParseUserToken(signToken(t, c), testSecret)
		assert.Error(t, err)
	})

	t.Run("Wrong Audience", func(t *testing.T) {
		c := validClaims(123)
		c["aud"] = "other-client"
		_, err := ParseUserToken(signToken(t, c), testSecret)
		assert.Error(t, err)
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(123))
		s, err := token.SignedString([]byte("another-secret-entirely-123456789012"))
		require.NoError(t, err)
		_, err = ParseUserToken(s, testSecret)
		assert.Error(t, err)
	})

	t.Run("Non-Numeric Subject", func(t *testing.T) {
		c := validClaims(123)
		c["sub"] = "not-a-number"
		_, err := ParseUserToken(signToken(t, c), testSecret)
		assert.Error(t, err)
	})

	t.Run("Malformed Token", func(t *testing.T) {
		_, err := ParseUserToken("malformed.token.here", testSecret)
		assert.Error(t, err)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"Standard Bearer", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"Empty Header", "", ""},
		{"Missing Scheme", "abc.def.ghi", ""},
		{"Wrong Scheme", "Basic dXNlcjpwYXNz", ""},
		{"Bearer Without Token", "Bearer ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BearerToken(tt.header))
		})
	}
}
