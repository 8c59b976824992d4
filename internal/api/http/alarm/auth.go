package alarm

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/remote-alarm/internal/logger"
)

// BasicAuth challenges requests without the expected credentials and logs
// every rejected attempt with the client address.
func BasicAuth(ctx context.Context, username, password, realm string) gin.HandlerFunc {
	check := gin.BasicAuthForRealm(gin.Accounts{username: password}, realm)

	return func(c *gin.Context) {
		check(c)

		if c.IsAborted() {
			logger.WarnKV(ctx, "Failed auth attempt",
				"remote_addr", c.ClientIP(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
		}
	}
}
