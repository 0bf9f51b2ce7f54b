package middleware

import (
	"net/http" // HTTP status codes

	"cryptovault/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// ContextUser holds the *domain.User loaded by the role middlewares
const ContextUser = "user"

// AdminOnlyMiddleware checks the user's role from the database on each request.
// The role claim in the token is never trusted.
func AdminOnlyMiddleware(db *gorm.DB) gin.HandlerFunc {
	return requireRole(db, "Admin access required", func(u *domain.User) bool {
		return u.Role == domain.RoleAdmin
	})
}

// SellerOnlyMiddleware admits every role except BUYER
func SellerOnlyMiddleware(db *gorm.DB) gin.HandlerFunc {
	return requireRole(db, "Sellers only", func(u *domain.User) bool {
		return u.CanSell()
	})
}

func requireRole(db *gorm.DB, denied string, allowed func(*domain.User) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := UserID(c) // Get userID from context
		// Check if userID exists in context
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; err != nil {
			// If user not found or any error, abort with forbidden status
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": denied})
			return
		}
		if !user.IsActive || !allowed(&user) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": denied})
			return
		}
		c.Set(ContextUser, &user)
		c.Next()
	}
}

// CurrentUser returns the user loaded by a role middleware
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok
}
