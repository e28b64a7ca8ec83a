package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"habita/internal/app/services/auth"
	domainuser "habita/internal/domain/user"
	"habita/internal/infra/obs"
)

const actorContextKey = "habita.actor"

// AuthMiddleware resolves "Authorization: Bearer <user-id>.<secret>" into an actor. Requests
// without a valid key continue anonymously; routes that need an actor call requireActor.
type AuthMiddleware struct {
	Service *auth.Service
	Logger  *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Service == nil {
		c.Next()
		return
	}
	actor, err := m.Service.Resolve(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) && !errors.Is(err, auth.ErrMalformedKey) && m.Logger != nil {
			m.Logger.Warn("api key lookup failed", "error", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	c.Set(actorContextKey, actor)
	c.Set(obs.ActorKey, string(actor.ID))
	c.Next()
}

func currentActor(c *gin.Context) (domainuser.Actor, bool) {
	val, exists := c.Get(actorContextKey)
	if !exists {
		return domainuser.Actor{}, false
	}
	a, ok := val.(domainuser.Actor)
	return a, ok
}

func requireActor(c *gin.Context) (domainuser.Actor, bool) {
	a, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return domainuser.Actor{}, false
	}
	return a, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
