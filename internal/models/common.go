package models

import "github.com/golang-jwt/jwt/v5"

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Caller roles supplied by the external identity layer.
const (
	RoleChair     = "CHAIR"
	RoleSecretary = "SECRETARY"
	RoleStaff     = "STAFF"
)

// IdentityClaims carries the caller identity parsed from an externally
// issued bearer token. The API does not mint these tokens.
type IdentityClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
