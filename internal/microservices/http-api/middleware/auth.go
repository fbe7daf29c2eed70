package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"raftlab/internal/rpc"
)

// PeerIDKey holds the authenticated sender in the gin context
const PeerIDKey = "peerID"

// TokenValidator checks a node token and returns the node that issued it
type TokenValidator interface {
	Validate(tokenString string) (rpc.NodeID, error)
}

// NodeAuthMiddleware only lets requests signed by a cluster member through.
// It expects "Authorization: Bearer <token>".
func NodeAuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ") // 0 is Bearer, 1 is token
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		peerID, err := tokens.Validate(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(PeerIDKey, peerID)
		c.Next()
	}
}
