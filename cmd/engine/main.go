package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/thermognosis/thermo-engine/internal/analysis"
	"github.com/thermognosis/thermo-engine/internal/api"
	"github.com/thermognosis/thermo-engine/internal/db"
	"github.com/thermognosis/thermo-engine/internal/scanner"
	"github.com/thermognosis/thermo-engine/internal/shadow"
	"github.com/thermognosis/thermo-engine/internal/source"
	"github.com/thermognosis/thermo-engine/internal/watch"
)

func main() {
	log.Println("Starting Thermognosis Evidence Engine (Microservice: thermo-bayes-analytics)...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	dbUrl := requireEnv("DATABASE_URL")

	dbConn, err := db.Connect(dbUrl)
	if err != nil {
		log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persisting evaluation runs. Error: %v", err)
		dbConn = nil
	} else {
		defer dbConn.Close()
		if err := dbConn.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
	}

	evaluator, err := analysis.NewQualityEvaluator(analysis.DefaultScoringWeights(), envFloat("QUALITY_LAMBDA", 0.05))
	if err != nil {
		log.Fatalf("FATAL: invalid scoring weights: %v", err)
	}

	auditor := shadow.NewShadowRunner(shadowStore(dbConn), evaluator, 1e-12)

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Create the historical dataset scanner with real-time alert broadcasting
	scanCfg := scanner.DefaultConfig()
	scanCfg.LambdaWF = envFloat("LAMBDA_WF", scanCfg.LambdaWF)
	scanCfg.AlertZT = envFloat("ALERT_ZT", scanCfg.AlertZT)
	datasetScanner := scanner.NewDatasetScanner(dbConn, auditor, evaluator, api.BroadcastCandidateAlert(wsHub), scanCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup and start the inbox poller
	dataDir := getEnvOrDefault("DATA_DIR", "./data/inbox")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Printf("Warning: cannot create inbox directory %s: %v", dataDir, err)
	}
	poller := watch.NewPoller(datasetScanner, wsHub, dataDir, 3*time.Second)
	go poller.Run(ctx)

	// Optional remote sample repository. The client is only used to verify
	// connectivity at boot; remote fetches go through the same ingest path.
	if baseURL := os.Getenv("SOURCE_API_URL"); baseURL != "" {
		if _, err := source.NewClient(source.Config{BaseURL: baseURL, APIKey: os.Getenv("SOURCE_API_KEY")}); err != nil {
			log.Printf("Warning: sample repository unreachable: %v", err)
		}
	}

	// Setup the Gin Router
	r := api.SetupRouter(dbConn, wsHub, datasetScanner, auditor, evaluator)

	port := getEnvOrDefault("PORT", "8080")

	// Start the server
	log.Printf("Engine running on :%s (API Node: thermo-bayes-analytics)\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// shadowStore adapts the nullable db connection to the shadow runner's
// store interface without handing it a non-nil interface wrapping a nil
// pointer.
func shadowStore(conn *db.PostgresStore) shadow.Store {
	if conn == nil {
		return nil
	}
	return conn
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envFloat parses a float tuning knob, falling back on parse failure.
func envFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %g", key, val, fallback)
		return fallback
	}
	return f
}
