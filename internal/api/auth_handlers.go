package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cybermed/agent/internal/auth"
	"github.com/cybermed/agent/internal/database"
	"github.com/cybermed/agent/internal/logging"
)

// LoginRequest carries credentials for token issuance.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /auth/token.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	if !auth.VerifyPassword(user.HashedPassword, req.Password) {
		h.logger.Warn("failed login attempt", logging.String("username", req.Username))
		errorResponse(c, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		errorResponse(c, http.StatusUnauthorized, "invalid token subject")
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "user not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, user)
}
