package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cybermed/agent/internal/auth"
	"github.com/cybermed/agent/internal/database"
	"github.com/cybermed/agent/internal/domain"
	"github.com/cybermed/agent/internal/logging"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ListDocuments handles GET /admin/documents: the catalog with
// classification flags.
func (h *Handler) ListDocuments(c *gin.Context) {
	offset := intQuery(c, "offset", 0)
	limit := intQuery(c, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}

	infos, err := h.documents.List(c.Request.Context(), offset, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": infos, "offset": offset, "limit": limit})
}

// DeleteConfirmation guards destructive document deletes.
type DeleteConfirmation struct {
	Confirmed bool `json:"confirmed"`
}

// DeleteDocument handles DELETE /admin/documents/:doc_id. The request body
// must carry an explicit confirmation; the delete is audit-logged with the
// acting user and client address.
func (h *Handler) DeleteDocument(c *gin.Context) {
	docID := c.Param("doc_id")

	var confirmation DeleteConfirmation
	if err := c.ShouldBindJSON(&confirmation); err != nil || !confirmation.Confirmed {
		errorResponse(c, http.StatusBadRequest, "deletion must be confirmed")
		return
	}

	userID, _ := currentUserID(c)

	if err := h.documents.Delete(c.Request.Context(), docID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "document not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("document deleted",
		logging.String("action", "document_delete"),
		logging.String("doc_id", docID),
		logging.Int64("user_id", userID),
		logging.String("client_ip", c.ClientIP()),
	)
	c.JSON(http.StatusOK, gin.H{"deleted": docID})
}

// ListUsers handles GET /admin/users.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, users)
}

// CreateUserRequest carries a new account.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	IsAdmin  bool   `json:"is_admin"`
}

// CreateUser handles POST /admin/users.
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := &domain.User{
		Username:       req.Username,
		HashedPassword: hash,
		IsAdmin:        req.IsAdmin,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		errorResponse(c, http.StatusConflict, "username already exists")
		return
	}

	h.logger.Info("user created",
		logging.String("username", user.Username),
		logging.Bool("is_admin", user.IsAdmin),
	)
	c.JSON(http.StatusCreated, user)
}

// SetUserAdminRequest toggles a user's admin flag.
type SetUserAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

// SetUserAdmin handles PUT /admin/users/:id/admin.
func (h *Handler) SetUserAdmin(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var req SetUserAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.SetAdmin(c.Request.Context(), id, req.IsAdmin); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "user not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_admin": req.IsAdmin})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
