package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	userIDKey = "userId"
	roleKey   = "role"
)

// Authenticate validates the bearer token and injects userId and role into
// the context.
func Authenticate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			log.Println("[AUTH] [ERROR] missing token")
			abortUnauthorized(c, "Not authorized, no token")
			return
		}

		parts := strings.Split(raw, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			log.Println("[AUTH] [ERROR] invalid token format")
			abortUnauthorized(c, "Not authorized, token failed")
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			abortUnauthorized(c, "Not authorized, token failed")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			log.Println("[AUTH] [ERROR] token claims invalid")
			abortUnauthorized(c, "Not authorized, token failed")
			return
		}

		userIDValue, ok := claims["userId"].(string)
		if !ok || strings.TrimSpace(userIDValue) == "" {
			log.Println("[AUTH] [ERROR] userId claim missing")
			abortUnauthorized(c, "Not authorized, token failed")
			return
		}

		userID, err := primitive.ObjectIDFromHex(userIDValue)
		if err != nil {
			log.Println("[AUTH] [ERROR] invalid userId claim")
			abortUnauthorized(c, "Not authorized, token failed")
			return
		}

		role, _ := claims["role"].(string)
		if role == "" {
			role = RoleUser
		}

		c.Set(userIDKey, userID)
		c.Set(roleKey, role)
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(roleKey)
		for _, r := range allowedRoles {
			if role == r {
				c.Next()
				return
			}
		}
		log.Println("[AUTH] [WARN] role", role, "denied for", c.FullPath())
		abortUnauthorized(c, "Not authorized as an admin")
	}
}

// UserID returns the authenticated user, or the zero id.
func UserID(c *gin.Context) primitive.ObjectID {
	v, ok := c.Get(userIDKey)
	if !ok {
		return primitive.NilObjectID
	}
	id, _ := v.(primitive.ObjectID)
	return id
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(roleKey) == RoleAdmin
}

// IssueToken signs an HS256 access token carrying userId and role.
func IssueToken(userID primitive.ObjectID, role, secret string, ttl time.Duration) (string, error) {
	if role == "" {
		role = RoleUser
	}
	claims := jwt.MapClaims{
		"userId": userID.Hex(),
		"role":   role,
		"exp":    time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
}
