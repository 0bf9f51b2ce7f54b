package api

import (
	"net/http"
	"strings"

	"cryptovault/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GetProfileHandler returns the caller's profile
func GetProfileHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		var user domain.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// ProfileRequest is the onboarding form
type ProfileRequest struct {
	Name *string `json:"name"`
	Bio  *string `json:"bio"`
	Role string  `json:"role"` // BUYER, SELLER or BOTH; empty keeps the current role
}

// UpdateProfileHandler saves name, bio and a self-assignable role and tells
// the client where onboarding continues
func UpdateProfileHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		var req ProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if req.Role != "" && !domain.IsSelfAssignableRole(req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be BUYER, SELLER or BOTH"})
			return
		}
		var user domain.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		updates := map[string]any{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be empty"})
				return
			}
			updates["name"] = name
		}
		if req.Bio != nil {
			updates["bio"] = *req.Bio
		}
		if req.Role != "" {
			updates["role"] = req.Role
		}
		if len(updates) > 0 {
			if err := db.Model(&user).Updates(updates).Error; err != nil {
				logrus.WithFields(logrus.Fields{
					"user_id": userID,
					"error":   err.Error(),
				}).Error("Profile update failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
				return
			}
		}
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
			return
		}
		next := dashboardPath
		if user.Role == domain.RoleSeller {
			next = "/onboarding/contract"
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "user": user, "next": next})
	}
}
