package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"catalog-cache-go/catalog"
	"catalog-cache-go/config"
	"catalog-cache-go/middleware"
	"catalog-cache-go/services/notifier"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var conf = config.Get()

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel) // Set to InfoLevel (change to DebugLevel for detailed logs)

	err := godotenv.Load()
	if err != nil {
		log.Warn("Error loading .env file, using environment variables")
	}
}

func main() {
	// The backing store is an external collaborator; the in-memory store
	// lets the service run standalone until one is wired in.
	store := catalog.NewMemoryStore()

	app, err := newApp(store)
	if err != nil {
		notifier.PublishServerStartupFailed("startup", err)
		log.Fatalf("Failed to wire application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.start(ctx)

	router := mux.NewRouter()
	setupRoutes(router, app)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
	})

	limiter := middleware.NewIPRateLimiter(
		rate.Limit(conf.Configuration.RateLimitPerSecond),
		conf.Configuration.RateLimitBurstLimit,
	)

	// logging, cors, then rate limiting
	loggedRouter := middleware.LoggingMiddleware(router)
	corsHandler := c.Handler(loggedRouter)
	handler := middleware.RateLimitMiddleware(limiter)(corsHandler)

	port := fmt.Sprintf("%d", conf.Configuration.Port)
	notifier.PublishServerStarted(port)
	log.Infof("Server listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
