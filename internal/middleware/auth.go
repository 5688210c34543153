package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenIssuer is the expected "iss" claim on every access token.
	TokenIssuer = "ripple-api"
	// TokenAudience is the expected "aud" claim on every access token.
	TokenAudience = "ripple-client"
)

// TokenClaims is the validated identity extracted from an access token.
type TokenClaims struct {
	UserID   uint
	Username string
	JTI      string
	ExpireAt int64
}

// ErrInvalidToken covers every token rejection reason that is safe to show
// to a caller without leaking which check failed.
var ErrInvalidToken = errors.New("invalid or expired token")

// ParseUserToken validates an HMAC-signed access token and returns its
// claims. Issuer, audience, and subject are all required.
func ParseUserToken(tokenString, secret string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != TokenIssuer {
		return nil, ErrInvalidToken
	}
	if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != TokenAudience {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, ErrInvalidToken
	}

	out := &TokenClaims{UserID: uint(userID)}
	if username, usernameOk := claims["username"].(string); usernameOk {
		out.Username = username
	}
	if jti, jtiOk := claims["jti"].(string); jtiOk {
		out.JTI = jti
	}
	if exp, expOk := claims["exp"].(float64); expOk {
		out.ExpireAt = int64(exp)
	}
	return out, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Returns "" when the header is absent or malformed.
func BearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
