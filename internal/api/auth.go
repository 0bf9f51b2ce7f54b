package api

import (
	"context"
	"errors"
	"net/http" // HTTP status codes
	"time"

	"cryptovault/internal/config"
	"cryptovault/internal/domain"   // Importing domain models
	"cryptovault/internal/identity" // Sign-in and API keys
	"cryptovault/internal/middleware"
	"cryptovault/internal/oauth"
	"cryptovault/internal/utils" // Utility functions

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm" // GORM ORM library
)

const stateCookie = "oauth_state"

// Redirect targets after sign-in
const (
	onboardingPath = "/onboarding/profile"
	dashboardPath  = "/dashboard"
)

// GoogleLoginHandler redirects to the provider's consent page
func GoogleLoginHandler(provider oauth.Provider, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if provider == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
			return
		}
		state := utils.RandomHex(16)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(stateCookie, state, int((10 * time.Minute).Seconds()), "/", "", cfg.IsProd, true)
		c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
	}
}

// GoogleCallbackHandler completes sign-in and issues the session cookie
func GoogleCallbackHandler(db *gorm.DB, provider oauth.Provider, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if provider == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
			return
		}
		// Check state against the cookie set at login
		state, err := c.Cookie(stateCookie)
		if err != nil || state == "" || c.Query("state") != state {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
			return
		}
		c.SetCookie(stateCookie, "", -1, "/", "", cfg.IsProd, true) // One-time use
		code := c.Query("code")
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.OutboundTimeout)
		defer cancel()
		profile, err := provider.Exchange(ctx, code)
		if err != nil {
			logrus.WithField("error", err.Error()).Warn("OAuth exchange failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign-in failed"})
			return
		}
		user, created, err := identity.SignIn(c.Request.Context(), db, profile)
		switch {
		case errors.Is(err, identity.ErrMissingEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "A verified email is required"})
			return
		case errors.Is(err, identity.ErrUserInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is deactivated"})
			return
		case err != nil:
			logrus.WithFields(logrus.Fields{
				"email": profile.Email,
				"error": err.Error(),
			}).Error("Sign-in failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-in failed"})
			return
		}
		if !issueSession(c, user, cfg) {
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"provider": profile.Provider,
			"new_user": created,
		}).Info("User signed in")
		if created {
			c.Redirect(http.StatusFound, onboardingPath)
			return
		}
		c.Redirect(http.StatusFound, dashboardPath)
	}
}

// issueSession sets the session cookie for user; it answers 500 on failure
func issueSession(c *gin.Context, user *domain.User, cfg *config.Config) bool {
	wallet := ""
	if user.WalletAddress != nil {
		wallet = *user.WalletAddress
	}
	token, err := utils.GenerateJWT(user.ID, user.Role, wallet, cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		logrus.WithField("error", err.Error()).Error("Failed to sign session token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-in failed"})
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(cfg.SessionTTL.Seconds()), "/", "", cfg.IsProd, true)
	return true
}

// LogoutHandler clears the session cookie
func LogoutHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, "", -1, "/", "", cfg.IsProd, true)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// MeHandler returns the persisted caller
func MeHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		var user domain.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// CreateAPIKeyHandler issues an API key; the plaintext is shown only here
func CreateAPIKeyHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		raw, key, err := identity.IssueAPIKey(c.Request.Context(), db, userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err.Error(),
			}).Error("API key creation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"key": raw, "apiKey": key})
	}
}

// ListAPIKeysHandler lists the caller's keys without secrets
func ListAPIKeysHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		keys, err := identity.ListAPIKeys(c.Request.Context(), db, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list API keys"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": keys})
	}
}

// RevokeAPIKeyHandler deletes one of the caller's keys
func RevokeAPIKeyHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		keyID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
			return
		}
		if err := identity.RevokeAPIKey(c.Request.Context(), db, userID, keyID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke API key"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
