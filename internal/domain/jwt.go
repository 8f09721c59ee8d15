package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// FreightDeskClaims represents the service token claims
type FreightDeskClaims struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
