package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access token payload issued by the identity service. The
// reconciler only verifies it.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}
