package middleware

import (
	"errors"
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"cryptovault/internal/domain"   // Importing domain models
	"cryptovault/internal/identity" // API key verification
	"cryptovault/internal/utils"    // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm" // GORM ORM library
)

// Request credential locations
const (
	SessionCookie = "session"   // HttpOnly cookie set at sign-in
	APIKeyHeader  = "X-API-Key" // cv_<prefix>_<secret>
	ContextUserID = "userID"    // uuid.UUID of the caller
)

// AuthMiddleware accepts an API key, a Bearer token or the session cookie,
// in that order, and stores the caller's ID in the context
func AuthMiddleware(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(APIKeyHeader); key != "" {
			user, err := identity.VerifyAPIKey(c.Request.Context(), db, key)
			if err != nil {
				if !errors.Is(err, identity.ErrInvalidAPIKey) && !errors.Is(err, identity.ErrUserInactive) {
					logrus.WithField("error", err.Error()).Error("API key lookup failed")
				}
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
				return
			}
			c.Set(ContextUserID, user.ID) // Store userID in context
			c.Next()
			return
		}

		tokenStr := bearerToken(c)
		if tokenStr == "" {
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				tokenStr = cookie
			}
		}
		// Check if any credential was presented
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret) // Parse the JWT token
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		userID, err := claims.UserUUID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		// Deactivated accounts lose their live sessions
		var user domain.User
		err = db.WithContext(c.Request.Context()).Select("id", "is_active").First(&user, "id = ?", userID).Error
		switch {
		case err == nil && !user.IsActive:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account is deactivated"})
			return
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			logrus.WithField("error", err.Error()).Error("Session user lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.Set(ContextUserID, userID) // Store userID in context
		c.Next()                     // Proceed to the next handler
	}
}

// UserID returns the authenticated caller's ID
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}
