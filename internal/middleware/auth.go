package middleware

import (
	"net/http"
	"os"
	"strings"

	"backend/internal/policy"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actorContextKey = "actor"

func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only — DO NOT use in production
	}
	return []byte(secret)
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", accessToken, 3600*24, "/", "", secure, true)
	c.SetCookie("refresh_token", refreshToken, 3600*24*7, "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

// RequireRole validates the JWT, materializes the actor triple
// (id, roles, department) into the request context, and checks that at
// least one of the actor's roles is allowed.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try cookie first, fallback to Authorization header
		tokenString, cookieErr := c.Cookie("access_token")
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		actor, ok := actorFromToken(tokenString)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		roleAllowed := false
		for _, role := range allowedRoles {
			if actor.HasRole(role) {
				roleAllowed = true
				break
			}
		}
		if !roleAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// CurrentActor returns the actor the auth middleware resolved for this request.
func CurrentActor(c *gin.Context) (policy.Actor, bool) {
	value, exists := c.Get(actorContextKey)
	if !exists {
		return policy.Actor{}, false
	}
	actor, ok := value.(policy.Actor)
	return actor, ok
}

// actorFromToken parses and validates the access token and extracts the
// identity triple from its claims.
func actorFromToken(tokenString string) (policy.Actor, bool) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return GetJWTSecret(), nil
	})
	if err != nil || !token.Valid {
		return policy.Actor{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return policy.Actor{}, false
	}

	sub, _ := claims["sub"].(string)
	actorID, err := uuid.Parse(sub)
	if err != nil {
		return policy.Actor{}, false
	}

	actor := policy.Actor{ID: actorID}

	if rawRoles, ok := claims["roles"].([]interface{}); ok {
		for _, raw := range rawRoles {
			if role, ok := raw.(string); ok {
				actor.Roles = append(actor.Roles, role)
			}
		}
	}

	if rawDept, ok := claims["department_id"].(string); ok && rawDept != "" {
		if departmentID, err := uuid.Parse(rawDept); err == nil {
			actor.DepartmentID = &departmentID
		}
	}

	return actor, true
}
