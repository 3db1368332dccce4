package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urlic/licenced/internal/api"
	"github.com/urlic/licenced/internal/audit"
	"github.com/urlic/licenced/internal/bus"
	"github.com/urlic/licenced/internal/config"
	"github.com/urlic/licenced/internal/license"
	"github.com/urlic/licenced/internal/lock"
	"github.com/urlic/licenced/internal/log"
	"github.com/urlic/licenced/internal/rpc"
	"github.com/urlic/licenced/internal/storage"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "version":
		fmt.Printf("licenced version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`licenced - License operation RPC service

Usage:
  licenced <command> [flags]

Commands:
  start             Start the service in foreground
  config lock       Authorize current config (update integrity hash)
  config check      Validate config syntax and integrity
  config example    Print an example configuration
  version           Show version information
  help              Show this help message
`)
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: licenced config <lock|check|example> [flags]")
		return 1
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "lock":
		return runConfigLock(actionArgs)
	case "check":
		return runConfigCheck(actionArgs)
	case "example":
		return runConfigExample()
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	configPath := fs.String("config", "licenced.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if err := config.WriteConfigHash(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}
	fmt.Printf("Locked %s\n", *configPath)
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "licenced.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Config check FAILED: %v\n", err)
		return 1
	}
	fmt.Println("Config check PASSED")
	return 0
}

func runConfigExample() int {
	out, err := config.MarshalExample(config.Defaults())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render example: %v\n", err)
		return 1
	}
	os.Stdout.Write(out)
	return 0
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "licenced.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("licenced starting", "version", version, "config", *configPath)

	pidLockPath := filepath.Join(filepath.Dir(cfg.Audit.Path), "licenced.lock")
	pidLock, err := lock.AcquirePIDLock(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.Audit.Path)
	if err != nil {
		logger.Error("failed to open audit database", "path", cfg.Audit.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("audit database opened", "path", cfg.Audit.Path)

	trail := audit.NewStore(db)
	hub := bus.NewHub(1024)
	handler := license.NewHandler(cfg.License)
	proc := rpc.NewProcessor(cfg.RPC, handler, hub, trail)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)
	procDone := make(chan struct{})

	go func() {
		defer close(procDone)
		if err := proc.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("processor: %w", err)
		}
	}()

	if cfg.API.Enabled {
		apiServer := api.New(cfg.API, proc, trail, hub, cfg.RPC.ResponseTopic, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("licenced running (press Ctrl+C to stop)",
		"request_topic", cfg.RPC.RequestTopic, "workers", cfg.RPC.Workers)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		exitCode = 1
	}

	cancel()

	// The processor drains its workers inside Run before returning; the audit
	// database must stay open until that finishes.
	<-procDone
	logger.Info("licenced stopped")
	return exitCode
}
