package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/solaradvisor/solaradvisor/internal/mcp"
)

func main() {
	apiURL := flag.String("api-url", "http://localhost:8000", "Base URL of the solar advisor REST API")
	timeout := flag.Duration("timeout", 60*time.Second, "Timeout for each API call")
	flag.Parse()

	// Logs go to stderr so stdout stays clean for JSON-RPC.
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zl, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()
	log := zapr.NewLogger(zl).WithName("mcp")
	log.Info("Starting MCP server", "apiURL", *apiURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(mcp.NewAPIClient(*apiURL, *timeout), log)
	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Error(err, "MCP server failed")
		zl.Sync()
		os.Exit(1)
	}
}
