package alarm

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/remote-alarm/internal/logger"
	"github.com/oshokin/remote-alarm/internal/version"
)

// RouterOptions controls authentication of the API routes.
type RouterOptions struct {
	// Username is the expected basic auth user.
	Username string
	// Password is the expected basic auth password.
	Password string
	// Realm is announced in the WWW-Authenticate challenge.
	Realm string
	// AuthEnabled turns basic auth on for /api.
	AuthEnabled bool
}

// NewRouter creates the gin engine serving the control page and the API.
func NewRouter(ctx context.Context, service Service, opts *RouterOptions) *gin.Engine {
	if opts == nil {
		opts = new(RouterOptions)
	}

	r := gin.New()
	r.Use(accessLog(ctx), gin.Recovery())
	r.SetHTMLTemplate(loadTemplates())

	handler := NewHandler(service)
	page := NewPage(service, opts.AuthEnabled)

	r.GET("/", page.Index)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Short()})
	})

	api := r.Group("/api")
	if opts.AuthEnabled {
		api.Use(BasicAuth(ctx, opts.Username, opts.Password, opts.Realm))
	}

	{
		api.GET("/status", handler.Status)
		api.POST("/play", handler.Play)
		api.POST("/loop", handler.Loop)
		api.POST("/stop", handler.Stop)
		api.POST("/stop-delayed", handler.StopDelayed)
		api.POST("/volume", handler.SetVolume)
	}

	return r
}

// accessLog logs every request with its outcome through the context logger.
func accessLog(ctx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		kvs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"remote_addr", c.ClientIP(),
			"latency", time.Since(start).String(),
		}

		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			logger.ErrorKV(ctx, "Request failed", append(kvs, "error", errs.String())...)

			return
		}

		logger.DebugKV(ctx, "Request served", kvs...)
	}
}
