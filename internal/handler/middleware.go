package handler

import (
	"net/http"
	"time"

	"github.com/chatterhq/identity-service/internal/domain"
	"github.com/chatterhq/identity-service/internal/dto"
	"github.com/chatterhq/identity-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

// IdentityMiddleware resolves the caller identity from cookies and
// attaches it to the request context. It never rejects a request: a
// missing, expired, or superseded session token downgrades the caller
// to anonymous and clears the stale cookie, leaving enforcement to
// RequireAuth on the routes that need it.
func IdentityMiddleware(sessions *service.SessionStore, cookies CookiePolicy, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := cookies.SessionToken(c); ok {
			claims, err := sessions.Validate(c.Request.Context(), token)
			if err == nil {
				c.Set(identityKey, domain.Authenticated(claims.UserID))
				c.Set("user_id", claims.UserID)
				maybeReissue(c, sessions, cookies, claims, logger)
				c.Next()
				return
			}

			logger.Debug("session token rejected, downgrading to anonymous", zap.Error(err))
			cookies.ClearSession(c)
		}

		guestID, _ := cookies.GuestID(c)
		c.Set(identityKey, domain.Anonymous(guestID))

		c.Next()
	}
}

// maybeReissue slides the session forward once less than half the TTL
// remains. The fresh token supersedes the old one, so the cookie must
// be replaced in the same response.
func maybeReissue(c *gin.Context, sessions *service.SessionStore, cookies CookiePolicy, claims *domain.SessionClaims, logger *zap.Logger) {
	if time.Until(claims.ExpiresAt) >= sessions.TTL()/2 {
		return
	}

	token, err := sessions.Create(c.Request.Context(), claims.UserID)
	if err != nil {
		// The current token is still valid; try again on the next request.
		logger.Warn("failed to re-issue session token", zap.Error(err))
		return
	}

	cookies.SetSession(c, token)
}

// RequireAuth rejects requests whose resolved identity is not authenticated
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := CurrentIdentity(c)
		if !identity.Authenticated {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Authentication required",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentIdentity returns the identity resolved by IdentityMiddleware
func CurrentIdentity(c *gin.Context) domain.Identity {
	value, exists := c.Get(identityKey)
	if !exists {
		return domain.Identity{}
	}

	identity, ok := value.(domain.Identity)
	if !ok {
		return domain.Identity{}
	}

	return identity
}
