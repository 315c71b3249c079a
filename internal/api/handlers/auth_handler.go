package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"journey-risk-api-server/internal/api/middleware"
	"journey-risk-api-server/internal/auth"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	Store  *repository.Store
	Tokens *auth.TokenManager
	Logger *zap.Logger
}

type RegisterRequest struct {
	Username string  `json:"username" binding:"required"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=6"`
	Company  *string `json:"company"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Email       *string             `json:"email" binding:"omitempty,email"`
	Company     *string             `json:"company"`
	Preferences *models.Preferences `json:"preferences"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

type userSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func summarize(u *models.User) userSummary {
	return userSummary{ID: u.ID.Hex(), Username: u.Username, Email: u.Email, Role: u.Role}
}

func (h *AuthHandler) issueTokens(u *models.User) (string, string, error) {
	access, err := h.Tokens.GenerateAccessToken(u.ID.Hex(), u.Role)
	if err != nil {
		return "", "", err
	}
	refresh, err := h.Tokens.GenerateRefreshToken(u.ID.Hex(), u.Role)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Register creates a regular user. Roles are never taken from the request.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	if _, err := h.Store.Users.GetByUsername(ctx, req.Username); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	}
	if _, err := h.Store.Users.GetByEmail(ctx, req.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		serverError(c, h.Logger, "Failed to hash password", err)
		return
	}
	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hash,
		Role:         models.RoleUser,
		Company:      req.Company,
		CreatedAt:    time.Now().UTC(),
		Preferences:  models.DefaultPreferences(),
	}
	if err := h.Store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
			return
		}
		serverError(c, h.Logger, "Failed to create user", err)
		return
	}

	access, refresh, err := h.issueTokens(user)
	if err != nil {
		serverError(c, h.Logger, "Failed to generate tokens", err)
		return
	}
	h.Logger.Info("user registered", zap.String("user_id", user.ID.Hex()), zap.String("username", user.Username))

	c.JSON(http.StatusCreated, gin.H{
		"message":       "User registered successfully",
		"access_token":  access,
		"refresh_token": refresh,
		"user":          summarize(user),
	})
}

// Login accepts either a username or an email.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Username == "" && req.Email == "" {
		badRequest(c, "Username or email is required")
		return
	}
	ctx := c.Request.Context()

	var (
		user *models.User
		err  error
	)
	if req.Username != "" {
		user, err = h.Store.Users.GetByUsername(ctx, req.Username)
	} else {
		user, err = h.Store.Users.GetByEmail(ctx, strings.ToLower(req.Email))
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		serverError(c, h.Logger, "Failed to load user", err)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := h.Store.Users.UpdateLastLogin(ctx, user.ID.Hex(), time.Now().UTC()); err != nil {
		h.Logger.Warn("failed to record last login", zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}

	access, refresh, err := h.issueTokens(user)
	if err != nil {
		serverError(c, h.Logger, "Failed to generate tokens", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Login successful",
		"access_token":  access,
		"refresh_token": refresh,
		"user":          summarize(user),
	})
}

// Refresh runs behind AuthenticateRefresh and issues a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	user, err := h.Store.Users.GetByID(c.Request.Context(), middleware.UserID(c))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		serverError(c, h.Logger, "Failed to load user", err)
		return
	}
	access, err := h.Tokens.GenerateAccessToken(user.ID.Hex(), user.Role)
	if err != nil {
		serverError(c, h.Logger, "Failed to generate token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

func (h *AuthHandler) currentUser(c *gin.Context) (*models.User, bool) {
	user, err := h.Store.Users.GetByID(c.Request.Context(), middleware.UserID(c))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return nil, false
	}
	if err != nil {
		serverError(c, h.Logger, "Failed to load user", err)
		return nil, false
	}
	return user, true
}

func (h *AuthHandler) Profile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          user.ID.Hex(),
		"username":    user.Username,
		"email":       user.Email,
		"role":        user.Role,
		"company":     user.Company,
		"last_login":  user.LastLogin,
		"preferences": user.Preferences,
	})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if req.Email != nil {
		email := strings.ToLower(*req.Email)
		req.Email = &email
		if existing, err := h.Store.Users.GetByEmail(ctx, email); err == nil && existing.ID != user.ID {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
			return
		}
	}

	upd := repository.ProfileUpdate{Email: req.Email, Company: req.Company, Preferences: req.Preferences}
	if err := h.Store.Users.UpdateProfile(ctx, user.ID.Hex(), upd); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
			return
		}
		serverError(c, h.Logger, "Failed to update profile", err)
		return
	}

	updated, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": updated})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !auth.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		serverError(c, h.Logger, "Failed to hash password", err)
		return
	}
	if err := h.Store.Users.UpdatePassword(c.Request.Context(), user.ID.Hex(), hash); err != nil {
		serverError(c, h.Logger, "Failed to update password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
