package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"crisp-academy/backend/pkg/jwt"
	"crisp-academy/backend/pkg/redis"
	"crisp-academy/backend/pkg/response"
)

// Context keys set by JWTAuth.
const (
	CtxUserID       = "user_id"
	CtxRole         = "role"
	CtxDepartmentID = "department_id"
	CtxTokenID      = "token_id"
	CtxTokenExpiry  = "token_expiry"
)

// JWTAuth validates the access token from "Authorization: Bearer <token>".
// Browsers cannot set headers on websocket upgrades, so GET requests may
// pass the token as ?access_token= instead.
// A nil rdb skips the blacklist check.
func JWTAuth(jwtMgr *jwt.Manager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, response.CodeUnauthorized, "missing or malformed authorization header")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, response.CodeUnauthorized, "token is invalid or expired")
			c.Abort()
			return
		}
		if claims.TokenType != jwt.TokenTypeAccess {
			response.Unauthorized(c, response.CodeUnauthorized, "token type is invalid")
			c.Abort()
			return
		}

		if rdb != nil && claims.ID != "" {
			// redis errors degrade open
			if revoked, err := rdb.IsBlacklisted(c.Request.Context(), claims.ID); err == nil && revoked {
				response.Unauthorized(c, response.CodeUnauthorized, "token has been revoked")
				c.Abort()
				return
			}
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxDepartmentID, claims.DepartmentID)
		c.Set(CtxTokenID, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(CtxTokenExpiry, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if c.Request.Method == "GET" {
		if token := c.Query("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// RoleAuth lets the request through when the caller has one of allowedRoles.
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		if role == "" {
			response.Unauthorized(c, response.CodeUnauthorized, "not authenticated")
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if role == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, response.CodeForbidden, "permission denied")
		c.Abort()
	}
}
