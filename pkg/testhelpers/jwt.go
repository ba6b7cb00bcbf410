// Package testhelpers provides utilities for testing datagate-engine components.
package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateTestJWT creates an unsigned JWT carrying the given role, for use
// when signature verification is disabled. The subject should be a UUID
// string because identity extraction parses it as one.
func GenerateTestJWT(sub, role, email string) string {
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"iss":  "https://auth.test.local",
		"iat":  jwt.NewNumericDate(time.Now()),
		"exp":  jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	if email != "" {
		claims["email"] = email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		panic(err)
	}
	return signed
}

// GenerateTestJWTWithBearer returns the token with a "Bearer " prefix for an
// Authorization header.
func GenerateTestJWTWithBearer(sub, role, email string) string {
	return "Bearer " + GenerateTestJWT(sub, role, email)
}

// GenerateSignedTestJWT creates an HS256-signed JWT for shared-secret
// verification tests.
func GenerateSignedTestJWT(secret, sub, role string) string {
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"iss":  "https://auth.test.local",
		"iat":  jwt.NewNumericDate(time.Now()),
		"exp":  jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return signed
}
