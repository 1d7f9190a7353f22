/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the district performance statistics server.
  Handles configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Construct cache, upstream client, reconciliation engine, resolver
  4. Configure HTTP router, start the background refresher
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: nrega.db, ":memory:" works)
  -refresh   Background refresh interval (default: 6h, 0 disables)
  -states    Comma-separated states to refresh in the background

ENVIRONMENT:
  DATA_GOV_API_KEY   API key for the open-data source (required for
                     live fetches; loaded from .env when present)
  DATA_GOV_BASE_URL  Override the upstream base URL (tests, mirrors)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop the refresher, stop accepting connections,
  wait up to 30s for active requests, close the database.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gramstat/nrega-insights/api"
	"github.com/gramstat/nrega-insights/cache"
	"github.com/gramstat/nrega-insights/reconcile"
	"github.com/gramstat/nrega-insights/resolver"
	"github.com/gramstat/nrega-insights/store/sqlite"
	"github.com/gramstat/nrega-insights/upstream"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "nrega.db", "SQLite database path")
	refresh := flag.Duration("refresh", 6*time.Hour, "background refresh interval (0 disables)")
	states := flag.String("states", "", "comma-separated states to refresh in the background")
	flag.Parse()

	apiKey := os.Getenv("DATA_GOV_API_KEY")
	if apiKey == "" {
		log.Println("Warning: DATA_GOV_API_KEY not set; upstream fetches will fail")
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	memCache := cache.NewMemory()
	defer memCache.Close()

	client := upstream.New(upstream.Config{
		BaseURL: os.Getenv("DATA_GOV_BASE_URL"),
		APIKey:  apiKey,
	}, memCache)
	engine := reconcile.NewEngine(store)
	res := resolver.New(store, client, engine)

	handler := api.NewHandler(store, res, client)
	router := api.NewRouter(handler)

	var refresher *api.Refresher
	if *refresh > 0 && *states != "" {
		refresher = api.NewRefresher(client, engine, splitStates(*states), *refresh)
		refresher.Start()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if refresher != nil {
		refresher.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func splitStates(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
