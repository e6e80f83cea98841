/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll ledger engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Build the timesheet service from the policy config
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: payroll.db)
           Use ":memory:" for an in-memory database
  -policy  Policy JSON file path (optional; defaults to the standard
           preset with a 20-day quota)

ENVIRONMENT (overridden by flags):
  PORT       HTTP server port
  DB_PATH    SQLite database path
  LOG_LEVEL  logrus level (debug, info, warn, error)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Run with a custom policy
  ./server -policy="./config/policy.json"

SEE ALSO:
  - api/server.go: Router configuration
  - timesheet/service.go: Orchestrator wiring
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/timesheet"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	// .env is optional; flags and real env still win.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "payroll.db"), "SQLite database path")
	policyPath := flag.String("policy", "", "policy JSON file path")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(envStr("LOG_LEVEL", "info")); err == nil {
		log.SetLevel(level)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	policyJSON := factory.StandardPolicyJSON("org-standard", 20)
	if *policyPath != "" {
		raw, err := os.ReadFile(*policyPath)
		if err != nil {
			log.WithError(err).Fatal("failed to read policy file")
		}
		policyJSON = string(raw)
	}
	policy, payPolicy, err := factory.NewPolicyFactory().ParsePolicy(policyJSON)
	if err != nil {
		log.WithError(err).Fatal("failed to parse policy")
	}

	service := timesheet.New(timesheet.Config{
		Records:   store,
		Ledger:    store,
		Directory: store,
		Rates:     store,
		Policy:    policy,
		PayPolicy: payPolicy,
		Log:       log,
	})

	handler := api.NewHandler(service, store, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", *port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server stopped")
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
