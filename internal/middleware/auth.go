package middleware

import (
	"context"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/audit"
	"github.com/yukikurage/taskflow-api/internal/constants"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/models"
)

// ActorResolver resolves bearer tokens and loads the users they name.
type ActorResolver interface {
	ParseToken(token string) (uint64, error)
	GetUser(ctx context.Context, id uint64) (*models.User, error)
}

// CurrentUser resolves the acting user from an Authorization bearer token or
// the session. It never rejects a request; anonymous requests simply carry no
// user id. A token or session naming a missing or deleted user is ignored.
func CurrentUser(actors ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := claimedUserID(c, actors); ok {
			if user, err := actors.GetUser(c.Request.Context(), userID); err == nil {
				c.Set(constants.ContextKeyUserID, user.ID)
			}
		}

		c.Next()
	}
}

func claimedUserID(c *gin.Context, actors ActorResolver) (uint64, bool) {
	if token, ok := bearerToken(c); ok {
		userID, err := actors.ParseToken(token)
		return userID, err == nil
	}

	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return 0, false
	}
	value := sessions.Default(c).Get(constants.ContextKeyUserID)
	if value == nil {
		return 0, false
	}
	return toUserID(value)
}

// RequireAuth rejects requests that CurrentUser could not attach a user to
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := GetUserID(c); !exists {
			_ = c.Error(apierrors.Unauthorized(""))
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return toUserID(userID)
}

// toUserID accepts the integer types a session store may decode an id into.
func toUserID(value any) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// AuditMeta collects the request context recorded with each mutation.
func AuditMeta(c *gin.Context) audit.Meta {
	meta := audit.Meta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: c.GetString(constants.ContextKeyRequestID),
	}
	if userID, ok := GetUserID(c); ok {
		meta.ActorID = &userID
	}
	return meta
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
