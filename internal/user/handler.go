package user

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CallerIdentifier resolves the calling user's id from an Authorization header value.
// A negative result means the caller could not be identified.
type CallerIdentifier interface {
	GetIDClaimFromHeader(header string) int
}

// SessionRevoker deactivates every refresh token a user holds.
type SessionRevoker interface {
	DeactivateTokensForUser(ctx context.Context, userID uint) error
}

// CreateUserRequest represents the payload for registering a new user.
// @Description payload to register a new user
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// UpdateEmailRequest represents the payload to update a user's email.
type UpdateEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// UpdatePasswordRequest represents the payload to update a user's password.
type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// IDRequest represents a URI ID parameter.
type IDRequest struct {
	ID uint `uri:"id" binding:"required,min=1"`
}

// IDResponse returns a newly created resource ID.
type IDResponse struct {
	ID uint `json:"id"`
}

// UserHandler handles HTTP requests for user resources.
type UserHandler struct {
	service  UserService
	caller   CallerIdentifier
	sessions SessionRevoker
	logger   *zap.Logger
}

// NewUserHandler registers user endpoints. public is unauthenticated, authed sits behind the
// access token gate and admin additionally requires the superuser role.
func NewUserHandler(
	public, authed, admin *gin.RouterGroup,
	service UserService,
	caller CallerIdentifier,
	sessions SessionRevoker,
	logger *zap.Logger,
) *UserHandler {
	h := &UserHandler{service: service, caller: caller, sessions: sessions, logger: logger}

	public.POST("/users", h.CreateUser)

	authed.GET("/users/me", h.ReadCurrentUser)
	authed.PUT("/users/me/email", h.UpdateEmail)
	authed.PUT("/users/me/password", h.UpdatePassword)

	admin.GET("/users/:id", h.ReadUserByID)
	admin.GET("/users", h.ReadUserByEmail)
	admin.DELETE("/users/:id", h.DeleteUser)
	return h
}

func (h *UserHandler) bindID(c *gin.Context) (uint, bool) {
	var uri IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing id"})
		return 0, false
	}
	return uri.ID, true
}

func (h *UserHandler) callerID(c *gin.Context) (uint, bool) {
	id := h.caller.GetIDClaimFromHeader(c.GetHeader("Authorization"))
	if id < 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	return uint(id), true
}

// revokeSessions ends every session of id after its credentials changed or it was removed.
func (h *UserHandler) revokeSessions(c *gin.Context, id uint) bool {
	if err := h.sessions.DeactivateTokensForUser(c.Request.Context(), id); err != nil {
		h.logger.Error("failed to revoke sessions", zap.Uint("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not end existing sessions"})
		return false
	}
	return true
}

// CreateUser godoc
// @Summary      Register User
// @Description  Register a new student account
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        payload  body      CreateUserRequest  true  "User payload"
// @Success      201      {object}  IDResponse
// @Failure      400      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email, username or password format"})
		return
	}
	u, err := h.service.CreateUser(c.Request.Context(), req.Email, req.Username, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, IDResponse{ID: u.ID})
	case errors.Is(err, ErrEmailAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	case isValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email, username or password format"})
	default:
		h.logger.Error("service.CreateUser failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
	}
}

// ReadCurrentUser godoc
// @Summary      Get current user
// @Description  Fetch the record of the calling user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} User
// @Failure      401 {object} map[string]string
// @Router       /users/me [get]
func (h *UserHandler) ReadCurrentUser(c *gin.Context) {
	id, ok := h.callerID(c)
	if !ok {
		return
	}
	u, err := h.service.ReadUserByID(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, u)
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		h.logger.Error("service.ReadUserByID failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch user"})
	}
}

// ReadUserByID godoc
// @Summary      Get User by ID
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int     true  "User ID"
// @Success      200      {object}  User
// @Failure      400      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Router       /users/{id} [get]
func (h *UserHandler) ReadUserByID(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	u, err := h.service.ReadUserByID(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, u)
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		h.logger.Error("service.ReadUserByID failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch user"})
	}
}

// ReadUserByEmail godoc
// @Summary      Get User by Email
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        email    query     string  true  "Email address"
// @Success      200      {object}  User
// @Failure      400      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Router       /users [get]
func (h *UserHandler) ReadUserByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter required"})
		return
	}
	u, err := h.service.ReadUserByEmail(c.Request.Context(), email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, u)
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		h.logger.Error("service.ReadUserByEmail failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch user"})
	}
}

// UpdateEmail godoc
// @Summary      Update own email
// @Tags         users
// @Accept       json
// @Security     BearerAuth
// @Param        payload  body      UpdateEmailRequest  true  "New email payload"
// @Success      204
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Router       /users/me/email [put]
func (h *UserHandler) UpdateEmail(c *gin.Context) {
	id, ok := h.callerID(c)
	if !ok {
		return
	}
	var req UpdateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update email payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email format"})
		return
	}
	err := h.service.UpdateEmail(c.Request.Context(), id, req.Email)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, ErrInvalidEmailFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email format"})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, ErrEmailAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	default:
		h.logger.Error("service.UpdateEmail failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update email"})
	}
}

// UpdatePassword godoc
// @Summary      Update own password
// @Description  Change the caller's password and end all of their sessions
// @Tags         users
// @Accept       json
// @Security     BearerAuth
// @Param        payload  body      UpdatePasswordRequest  true  "New password payload"
// @Success      204
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Router       /users/me/password [put]
func (h *UserHandler) UpdatePassword(c *gin.Context) {
	id, ok := h.callerID(c)
	if !ok {
		return
	}
	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update password payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password format"})
		return
	}
	err := h.service.UpdatePassword(c.Request.Context(), id, req.Password)
	switch {
	case err == nil:
		if h.revokeSessions(c, id) {
			c.Status(http.StatusNoContent)
		}
	case isValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password format"})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		h.logger.Error("service.UpdatePassword failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update password"})
	}
}

// DeleteUser godoc
// @Summary      Delete User
// @Description  Soft delete a user and revoke its refresh tokens
// @Tags         users
// @Security     BearerAuth
// @Param        id       path      int   true  "User ID"
// @Success      204
// @Failure      400      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Router       /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	err := h.service.DeleteUser(c.Request.Context(), id)
	switch {
	case err == nil:
		if h.revokeSessions(c, id) {
			c.Status(http.StatusNoContent)
		}
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		h.logger.Error("service.DeleteUser failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete user"})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidEmailFormat) ||
		errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordNotAlphanumeric) ||
		errors.Is(err, ErrPasswordDoesNotHaveSpecialCharacter)
}
