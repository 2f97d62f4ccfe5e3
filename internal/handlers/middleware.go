package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// userCtxKey is where the middleware stashes the authenticated user's id.
const userCtxKey = "userId"

// userIdMiddleware gates the diagnostic API behind a Bearer token. Commands
// and programming sessions touch the vehicle bus, so nothing past this point
// runs anonymously.
func (h *Handler) userIdMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abortUnauthorized(c, "missing Authorization header")
		return
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" {
		abortUnauthorized(c, "invalid Authorization header format")
		return
	}

	userId, err := h.services.ParseToken(token)
	if err != nil {
		abortUnauthorized(c, "invalid or expired token")
		return
	}

	c.Set(userCtxKey, userId)
	c.Next()
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
