package service

import (
	"github.com/nucleo-eljunko/comodato-api/internal/models"
)

// Ownership policy in one place: admins see everything, representatives
// see only records tied to their own profile, guests read nothing scoped.

func isAdmin(claims *models.JWTClaims) bool {
	return claims != nil && claims.Role == models.RoleAdmin
}

// ownsRepresentative reports whether the actor may touch records that
// belong to the given representative.
func ownsRepresentative(claims *models.JWTClaims, representativeID string) bool {
	if claims == nil {
		return false
	}
	if claims.Role == models.RoleAdmin {
		return true
	}
	return claims.Role == models.RoleRepresentative && claims.RepresentativeID != "" && claims.RepresentativeID == representativeID
}

// scopeToRepresentative narrows a representative filter for
// non-admin actors. Returns false when the actor has no scope at all.
func scopeToRepresentative(claims *models.JWTClaims, current string) (string, bool) {
	if claims == nil {
		return "", false
	}
	if claims.Role == models.RoleAdmin {
		return current, true
	}
	if claims.Role == models.RoleRepresentative && claims.RepresentativeID != "" {
		return claims.RepresentativeID, true
	}
	return "", false
}
