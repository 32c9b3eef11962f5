package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is reported by /health. Set at build time with -ldflags.
var Version = "1.0.0"

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
