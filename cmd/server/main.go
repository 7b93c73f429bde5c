/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the library circulation server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (file, environment, flags)
  2. Initialize SQLite store
  3. Wire the domain engines (catalog, borrowers, circulation, reports)
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  config.yaml keys (see cmd/server/config.go):
    port       HTTP server port (default: 8080)
    db_path    SQLite database path (default: biblioteca.db)
  Environment: BIBLIOTECA_PORT, BIBLIOTECA_DB_PATH.
  Flags -port and -db override both.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/biblioteca.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
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
	"syscall"
	"time"

	"github.com/ivbsa-designe/biblioteca-ceprereso/api"
	"github.com/ivbsa-designe/biblioteca-ceprereso/borrowers"
	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
	"github.com/ivbsa-designe/biblioteca-ceprereso/circulation"
	"github.com/ivbsa-designe/biblioteca-ceprereso/reports"
	"github.com/ivbsa-designe/biblioteca-ceprereso/store/sqlite"
)

func main() {
	// Flags
	configDir := flag.String("config", ".", "Config directory")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Set(cfgKeyPort, *port)
	}
	if *dbPath != "" {
		cfg.Set(cfgKeyDBPath, *dbPath)
	}

	// Initialize store
	store, err := sqlite.New(cfg.GetString(cfgKeyDBPath))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire engines
	books := catalog.NewManager(store.Books())
	directory := borrowers.NewRegistry(store.Borrowers())
	sanctions := circulation.NewSanctions(store.Circulation())
	engine := circulation.NewEngine(store.Circulation(), store.Books(), store.Borrowers(), sanctions)
	reporter := reports.NewReporter(store.Books(), store.Circulation())

	handler := api.NewHandler(books, directory, engine, sanctions, reporter)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GetInt(cfgKeyPort)),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.GetInt(cfgKeyPort))
		log.Printf("API available at http://localhost:%d/api", cfg.GetInt(cfgKeyPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
