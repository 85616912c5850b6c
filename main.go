// api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/nottinghamcompanions/website-api/database"
	"github.com/nottinghamcompanions/website-api/email"
	"github.com/nottinghamcompanions/website-api/geoip"
	"github.com/nottinghamcompanions/website-api/handlers"
	"github.com/nottinghamcompanions/website-api/middleware"
	"github.com/nottinghamcompanions/website-api/store"
	"github.com/nottinghamcompanions/website-api/tracker"
)

func main() {
	// Load .env file at the very start
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Initialize PostgreSQL Database (sessions and inquiries) ---
	dbClient, err := database.NewPostgresDB()
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
	}
	defer dbClient.Close()

	// --- Initialize ClickHouse Database (raw beacon event log) ---
	chClient, err := database.NewClickHouseDB()
	if err != nil {
		log.Fatalf("Failed to initialize ClickHouse database: %v", err)
	}
	defer chClient.Close()

	// --- Initialize Stores ---
	sessionStore := store.NewSessionStore(dbClient.DB)
	inquiryStore := store.NewInquiryStore(dbClient.DB)
	eventStore := store.NewEventStore(chClient)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()
	if err := sessionStore.InitSchema(initCtx); err != nil {
		log.Fatalf("Failed to initialize sessions schema: %v", err)
	}
	if err := inquiryStore.InitSchema(initCtx); err != nil {
		log.Fatalf("Failed to initialize inquiries schema: %v", err)
	}
	if err := eventStore.InitSchema(initCtx); err != nil {
		log.Fatalf("Failed to initialize beacon_events schema: %v", err)
	}

	// --- Initialize Collaborators ---
	geoClient := geoip.NewClient()
	sessionTracker := tracker.New(sessionStore, geoClient)

	emailClient, err := email.NewClient()
	if err != nil {
		log.Printf("Email notifications disabled: %v", err)
	}

	// --- Initialize Handlers ---
	analyticsHandlers := handlers.NewAnalyticsHandlers(sessionTracker, sessionStore, eventStore)

	var notifier handlers.InquiryNotifier
	if emailClient != nil {
		notifier = emailClient
	}
	contactHandlers := handlers.NewContactHandlers(inquiryStore, notifier)

	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		analytics := api.Group("/analytics")
		{
			analytics.POST("/track", analyticsHandlers.Track)
			analytics.GET("/recent", analyticsHandlers.Recent)
			analytics.GET("/summary", analyticsHandlers.Summary)

			stats := analytics.Group("/stats")
			{
				stats.GET("/page-views", analyticsHandlers.PageViewStats)
				stats.GET("/top-pages", analyticsHandlers.TopPages)
			}
		}

		api.POST("/contact", contactHandlers.Submit)

		admin := api.Group("/admin")
		{
			admin.GET("/inquiries", contactHandlers.List)
			admin.PATCH("/inquiries/:id/status", contactHandlers.UpdateStatus)
			admin.DELETE("/inquiries/:id", contactHandlers.Delete)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("Website API server starting on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Website API server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
