package authentication

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoginRequest is the payload for logging in.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// RefreshRequest carries a refresh token value, used by refresh and logout.
type RefreshRequest struct {
	Token string `json:"token" binding:"required"`
}

// AuthHandler serves the session endpoints: login, refresh and logout.
type AuthHandler struct {
	service AuthenticationService
	logger  *zap.Logger
}

func NewAuthHandler(router *gin.RouterGroup, service AuthenticationService, logger *zap.Logger) *AuthHandler {
	h := &AuthHandler{service: service, logger: logger}

	sessions := router.Group("/auth")
	sessions.POST("/login", h.Login)
	sessions.POST("/refresh", h.Refresh)
	sessions.POST("/logout", h.Logout)
	return h
}

// sessionFailure maps a service error to the status and body sent to the client.
// Callers never learn which check rejected them.
func sessionFailure(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, ErrInvalidRefreshToken), errors.Is(err, ErrUnknownUser):
		return http.StatusUnauthorized, "invalid refresh token"
	default:
		return http.StatusInternalServerError, "something went wrong"
	}
}

func (h *AuthHandler) fail(c *gin.Context, op string, err error) {
	status, msg := sessionFailure(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" failed", zap.Error(err))
	} else {
		h.logger.Debug(op+" rejected", zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (h *AuthHandler) bindToken(c *gin.Context) (string, bool) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh token required"})
		return "", false
	}
	return req.Token, true
}

// Login godoc
// @Summary      Login
// @Description  Exchange email and password for a token pair. Any earlier refresh token of the user stops working.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      LoginRequest  true  "Login credentials"
// @Success      200      {object}  TokensDto
// @Failure      400,401  {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid email or password format"})
		return
	}
	tokens, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, ErrUnknownUser) {
		err = ErrInvalidCredentials
	}
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Refresh godoc
// @Summary      Refresh Token
// @Description  Trade the current refresh token for a new pair. A token can be traded once.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      RefreshRequest  true  "Refresh token"
// @Success      200      {object}  TokensDto
// @Failure      400,401  {object}  map[string]string
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := h.bindToken(c)
	if !ok {
		return
	}
	tokens, err := h.service.DoRefresh(c.Request.Context(), token)
	if err != nil {
		h.fail(c, "refresh", err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Logout godoc
// @Summary      Logout
// @Description  End every session of the token's owner
// @Tags         auth
// @Accept       json
// @Param        payload  body  RefreshRequest  true  "Refresh token"
// @Success      204
// @Failure      400,401  {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := h.bindToken(c)
	if !ok {
		return
	}
	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		h.fail(c, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}
