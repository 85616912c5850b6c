// api/middleware/cors.go
package middleware

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the frontend origin to call the API. FE_ORIGIN
// overrides the local dev default for deployment.
func CORSMiddleware() gin.HandlerFunc {
	origin := os.Getenv("FE_ORIGIN")
	if origin == "" {
		origin = "http://localhost:3000"
	}

	config := cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Accept", "Cache-Control", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(config)
}
