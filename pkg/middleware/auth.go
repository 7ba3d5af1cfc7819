package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/response"
)

const (
	UserIDKey     = "user_id"
	EmailKey      = "email"
	UsernameKey   = "username"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// Principal is the caller identity attached to an authenticated request.
type Principal struct {
	UserID   string
	Username string
	Email    string
}

// VerifyFunc resolves a bearer token into a Principal.
type VerifyFunc func(ctx context.Context, token string) (*Principal, error)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. ok is false when the header is empty or malformed.
func BearerToken(header string) (token string, ok bool) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	return token, token != ""
}

// RequireAuth returns a Gin middleware that rejects requests without a
// valid bearer token.
func RequireAuth(verify VerifyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader(AuthHeaderKey))
		if !ok {
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}

		p, err := verify(c.Request.Context(), token)
		if err != nil {
			l := log.Ctx(c.Request.Context())
			l.Debug().Err(err).Msg("bearer token rejected")
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		c.Set(UserIDKey, p.UserID)
		c.Set(EmailKey, p.Email)
		c.Set(UsernameKey, p.Username)

		c.Next()
	}
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
