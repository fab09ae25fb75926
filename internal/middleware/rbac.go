package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/response"
)

// Self grants access when the :id path parameter resolves to the caller.
const Self = "SELF"

// OwnerResolver maps a user id to the id of the resource it owns, for
// example the student or teacher record linked to the login.
type OwnerResolver func(ctx context.Context, userID string) (string, error)

// RBAC enforces role-based access control for routes. SELF matches when the
// :id parameter equals the caller's user id.
func RBAC(allowed ...string) gin.HandlerFunc {
	return rbac(nil, allowed...)
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return RBAC(roleNames(roles)...)
}

// RolesOrOwner admits the given roles, or a caller whose owned record id
// (as returned by resolve) equals the :id path parameter.
func RolesOrOwner(resolve OwnerResolver, roles ...models.UserRole) gin.HandlerFunc {
	return rbac(resolve, append(roleNames(roles), Self)...)
}

func rbac(resolve OwnerResolver, allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		if a == Self {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}
	// superadmins pass every role gate
	allowedRoles[models.RoleSuperAdmin] = struct{}{}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf && isSelf(c, claims, resolve) {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

func isSelf(c *gin.Context, claims *models.JWTClaims, resolve OwnerResolver) bool {
	targetID := c.Param("id")
	if targetID == "" {
		return false
	}
	if resolve == nil {
		return targetID == claims.UserID
	}
	ownedID, err := resolve(c.Request.Context(), claims.UserID)
	return err == nil && ownedID != "" && ownedID == targetID
}

func roleNames(roles []models.UserRole) []string {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return allowed
}
