// The sentinel command runs the governance review console and its small
// operational toolbox.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sentinel-labs/sentinel/pkg/agentcall"
	"github.com/sentinel-labs/sentinel/pkg/analytics"
	"github.com/sentinel-labs/sentinel/pkg/api"
	"github.com/sentinel-labs/sentinel/pkg/auth"
	"github.com/sentinel-labs/sentinel/pkg/config"
	"github.com/sentinel-labs/sentinel/pkg/console"
	"github.com/sentinel-labs/sentinel/pkg/kvstore"
	"github.com/sentinel-labs/sentinel/pkg/ledger"
	"github.com/sentinel-labs/sentinel/pkg/observability"
	"github.com/sentinel-labs/sentinel/pkg/session"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable to allow mocking in tests.
var startServer = runServer

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return startServer(stderr)
	}

	switch args[1] {
	case "server", "serve":
		return startServer(stderr)
	case "stats":
		return runStatsCmd(stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "clear":
		return runClearCmd(args[2:], stdout, stderr)
	case "health":
		return runHealthCmd(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if strings.HasPrefix(args[1], "-") {
			return startServer(stderr)
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sentinel [command]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve            Run the review console server (default)")
	fmt.Fprintln(w, "  stats            Print analytics over the persisted audit ledger")
	fmt.Fprintln(w, "  export [-o FILE] Write the audit ledger as a verifiable bundle")
	fmt.Fprintln(w, "  clear --yes      Irreversibly empty the audit ledger")
	fmt.Fprintln(w, "  health           Ping a running console")
}

// openStore picks the persistence backend from configuration.
func openStore(cfg *config.Config) (kvstore.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return kvstore.NewMemory(), nil
	case config.BackendFile:
		return kvstore.NewFile(cfg.StateDir)
	case config.BackendSQLite:
		return kvstore.OpenSQLite(filepath.Join(cfg.StateDir, "sentinel.db"))
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend requires DATABASE_URL")
		}
		return kvstore.OpenPostgres(cfg.DatabaseURL)
	case config.BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis backend requires REDIS_ADDR")
		}
		return kvstore.OpenRedis(cfg.RedisAddr), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func openLedger(ctx context.Context, cfg *config.Config) (*ledger.AuditLedger, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	ldg := ledger.New(store)
	if err := ldg.Load(ctx); err != nil {
		slog.Warn("audit ledger loaded degraded", "error", err)
	}
	return ldg, nil
}

func runServer(stderr io.Writer) int {
	ctx := context.Background()
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		log.Printf("profile: %v", err)
		return 1
	}

	ldg, err := openLedger(ctx, cfg)
	if err != nil {
		log.Printf("store: %v", err)
		return 1
	}

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "sentinel-console",
		ServiceVersion: "1.0.0",
		Environment:    "production",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       true,
	})
	if err != nil {
		log.Printf("observability: %v", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	caller := agentcall.NewHTTPCaller(cfg.AgentURL, nil)
	sess := session.New(caller, ldg, cfg.CoordinatorID)
	srv := console.NewServer(sess, ldg, profile, obs)

	validator := auth.NewValidator(cfg.AuthSigningKey)
	limiter := api.NewRateLimiter(profile.RateLimit.RequestsPerSecond, profile.RateLimit.Burst)

	slog.Info("sentinel console starting",
		"port", cfg.Port,
		"backend", cfg.StoreBackend,
		"coordinator", cfg.CoordinatorID,
		"auth", validator != nil,
	)
	if err := srv.Start(cfg.Port, validator, limiter); err != nil {
		_, _ = fmt.Fprintf(stderr, "server: %v\n", err)
		return 1
	}
	return 0
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func runStatsCmd(stdout, stderr io.Writer) int {
	ctx := context.Background()
	ldg, err := openLedger(ctx, config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "stats: %v\n", err)
		return 1
	}

	summary := analytics.Summarize(ldg.Snapshot())
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		_, _ = fmt.Fprintf(stderr, "stats: %v\n", err)
		return 1
	}
	return 0
}

func runExportCmd(args []string, stdout, stderr io.Writer) int {
	outPath := ""
	for i := 0; i < len(args); i++ {
		if (args[i] == "-o" || args[i] == "--out") && i+1 < len(args) {
			outPath = args[i+1]
			i++
		}
	}

	ctx := context.Background()
	ldg, err := openLedger(ctx, config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}

	bundle, err := ldg.ExportBundle()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}

	raw, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}

	if outPath == "" {
		_, _ = fmt.Fprintln(stdout, string(raw))
		return 0
	}
	if err := os.WriteFile(outPath, raw, 0o600); err != nil {
		_, _ = fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "Exported %d entries to %s\n", bundle.EntryCount, outPath)
	return 0
}

func runClearCmd(args []string, stdout, stderr io.Writer) int {
	confirmed := false
	for _, a := range args {
		if a == "--yes" || a == "-y" {
			confirmed = true
		}
	}
	if !confirmed {
		_, _ = fmt.Fprintln(stderr, "Refusing to clear the audit ledger without --yes")
		return 2
	}

	ctx := context.Background()
	ldg, err := openLedger(ctx, config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "clear: %v\n", err)
		return 1
	}

	n := ldg.Len()
	if err := ldg.Clear(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "clear: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "Cleared %d audit entries\n", n)
	return 0
}

func runHealthCmd(stdout, stderr io.Writer) int {
	cfg := config.Load()
	url := fmt.Sprintf("http://localhost:%s/health", cfg.Port)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = fmt.Fprintf(stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	body, _ := io.ReadAll(resp.Body)
	_, _ = fmt.Fprintf(stdout, "OK %s", body)
	return 0
}
