package authentication

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/didip/tollbooth_gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teamfive/lesson-booking-api/internal/user"
	"github.com/teamfive/lesson-booking-api/internal/utils"
)

// AuthMiddleware is the signature gate. It must run before any handler that trusts the
// caller id read by GetIDClaimFromHeader.
func AuthMiddleware(signer *utils.TokenSigner, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer <token>"})
			return
		}

		claims, err := signer.ParseAccessToken(parts[1])
		if err != nil {
			logger.Warn("access token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired access token"})
			return
		}

		c.Set(utils.ContextClaimsKey, claims)
		c.Next()
	}
}

// RoleMiddleware requires the verified roles claim to equal requiredRole.
func RoleMiddleware(requiredRole user.RoleType, logger *zap.Logger) gin.HandlerFunc {
	want := strconv.Itoa(int(requiredRole))
	return func(c *gin.Context) {
		raw, exists := c.Get(utils.ContextClaimsKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims, ok := raw.(*utils.AccessClaims)
		if !ok || claims.Roles != want {
			logger.Debug("role check failed", zap.String("required", requiredRole.String()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware limits requests per client IP.
func RateLimitMiddleware(perSecond float64) gin.HandlerFunc {
	lmt := tollbooth.NewLimiter(perSecond, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetMessageContentType("application/json; charset=utf-8")
	lmt.SetMessage(`{"error":"too many requests"}`)
	return tollbooth_gin.LimitHandler(lmt)
}
