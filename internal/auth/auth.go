// Package auth issues and validates the JWT pairs that identify API callers.
package auth

import "github.com/golang-jwt/jwt/v5"

// Authenticator produces an access/refresh token pair for a user and
// validates each kind against its own secret. The access token carries the
// role claim the admin middleware checks.
type Authenticator interface {
	GenerateTokens(userID int64, role string) (accessToken, refreshToken string, err error)
	ValidateAccessToken(token string) (*jwt.Token, error)
	ValidateRefreshToken(token string) (*jwt.Token, error)
}
