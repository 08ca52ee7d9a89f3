/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fines engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (default: circulation.db, env DATABASE_PATH)
           Use ":memory:" for an in-memory database
  -seed    Load a small demo dataset on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
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
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/stacks/fines-engine/api"
	"github.com/stacks/fines-engine/fines"
	"github.com/stacks/fines-engine/store/sqlite"
)

func main() {
	// .env is optional; flags override env.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "circulation.db"), "SQLite database path")
	seed := flag.Bool("seed", false, "load demo data on startup")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if *seed {
		if err := seedDemo(context.Background(), store); err != nil {
			log.Printf("Warning: failed to seed demo data: %v", err)
		}
	}

	// Initialize handler; receipts render to stdout (the "document produced"
	// boundary for this deployment).
	handler := api.NewHandler(store, fines.WriterPrinter{W: os.Stdout})

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("Overdue view at http://localhost:%d/api/fines", *port)
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

// seedDemo loads a small circulation dataset: two overdue borrows and one
// due in the future.
func seedDemo(ctx context.Context, store *sqlite.Store) error {
	now := time.Now()

	books := map[string]string{
		"BK-001": "The Go Programming Language",
		"BK-002": "Designing Data-Intensive Applications",
	}
	for number, title := range books {
		if err := store.SaveBook(ctx, number, title); err != nil {
			return err
		}
	}

	if err := store.SaveCopy(ctx, "ACC-1001", "BK-001", false); err != nil {
		return err
	}
	if err := store.SaveCopy(ctx, "ACC-1002", "BK-002", false); err != nil {
		return err
	}
	if err := store.SaveCopy(ctx, "ACC-1003", "BK-001", false); err != nil {
		return err
	}

	borrowers := []fines.Borrower{
		{UserID: "U-100", Name: "Alice Reyes", IDNumber: "2021-00145"},
		{UserID: "U-200", Name: "Ben Santos", IDNumber: "2022-00873"},
	}
	for _, b := range borrowers {
		if err := store.SaveBorrower(ctx, b); err != nil {
			return err
		}
	}

	seeds := []struct {
		borrowID, borrowerID, accession string
		due                             time.Time
	}{
		{"BRW-1", "U-100", "ACC-1001", now.Add(-26 * time.Hour)},
		{"BRW-2", "U-200", "ACC-1002", now.Add(-3 * time.Hour)},
		{"BRW-3", "U-100", "ACC-1003", now.Add(48 * time.Hour)},
	}
	for _, s := range seeds {
		if err := store.SaveBorrow(ctx, s.borrowID, s.borrowerID, s.accession, s.due); err != nil {
			return err
		}
	}

	log.Printf("Seeded %d borrows, %d borrowers", len(seeds), len(borrowers))
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
