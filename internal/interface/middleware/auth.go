package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	repo "github.com/danuargs/vidtube-backend/internal/domain/repository"
	"github.com/danuargs/vidtube-backend/pkg/helpers"
	"github.com/danuargs/vidtube-backend/pkg/response"
)

const (
	// CtxUserIDKey holds the authenticated user's id in the gin context.
	CtxUserIDKey = "userID"
	// CtxUserKey holds the sanitized profile of the authenticated user.
	CtxUserKey = "currentUser"
)

// Auth gates protected routes. It extracts the access token (accessToken
// cookie first, Authorization bearer header second), verifies it, and resolves
// the subject against the credential store. Every failure mode is reported to
// the client as the same 401; the specific cause is only logged.
func Auth(users repo.UserRepository, jwt *helpers.JWTManager, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractAccessToken(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "unauthorized request")
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			if logger != nil {
				logger.WithError(err).Debug("access token rejected")
			}
			response.Abort(c, http.StatusUnauthorized, "invalid access token")
			return
		}
		u, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if logger != nil {
				logger.WithError(err).WithField("user_id", claims.UserID).Debug("access token subject not resolvable")
			}
			response.Abort(c, http.StatusUnauthorized, "invalid access token")
			return
		}
		c.Set(CtxUserIDKey, u.ID)
		c.Set(CtxUserKey, u.Profile())
		c.Next()
	}
}

func extractAccessToken(c *gin.Context) string {
	if v, err := c.Cookie(helpers.AccessTokenCookie); err == nil && v != "" {
		return v
	}
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
