package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Health(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store != nil {
			if err := store.Ping(c.Request.Context()); err != nil {
				log.Println("[HEALTH] [ERROR] store ping failed:", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "database unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	}
}

// Metrics adapts a plain http.Handler such as the Prometheus exporter.
func Metrics(h http.Handler) gin.HandlerFunc {
	return gin.WrapH(h)
}
