// Package middleware provides HTTP middleware shared by the API server:
// identity token verification, request logging, rate limiting, metrics and tracing.
package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Token verification failures.
var (
	ErrMissingToken  = errors.New("authorization required")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrInvalidIssuer = errors.New("invalid token issuer")
	ErrMissingSub    = errors.New("invalid token structure - missing subject")
)

// IdentityClaims is the subset of identity-provider claims used to provision users.
type IdentityClaims struct {
	Subject   string
	Email     string
	Username  string
	FirstName string
	LastName  string
	ImageURL  string
}

// TokenVerifier validates identity-provider session tokens signed with a shared HMAC secret.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a verifier. An empty issuer disables the issuer check.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates tokenString and returns its identity claims.
func (v *TokenVerifier) Verify(tokenString string) (*IdentityClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" {
		if iss, _ := claims["iss"].(string); iss != v.issuer {
			return nil, ErrInvalidIssuer
		}
	}

	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return nil, ErrMissingSub
	}

	return &IdentityClaims{
		Subject:   sub,
		Email:     stringClaim(claims, "email"),
		Username:  stringClaim(claims, "username"),
		FirstName: stringClaim(claims, "first_name"),
		LastName:  stringClaim(claims, "last_name"),
		ImageURL:  stringClaim(claims, "image_url"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return strings.TrimSpace(v)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
