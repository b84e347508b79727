// mmaudio-mcp is an MCP server exposing the MMAudio generation API as three
// tools: video_to_audio, text_to_audio and validate_api_key.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mmaudio/mmaudio-mcp-go/internal/infra/config"
	"github.com/mmaudio/mmaudio-mcp-go/internal/mcpserver"
	"github.com/mmaudio/mmaudio-mcp-go/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("mmaudio-mcp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")
	httpAddr := fs.String("http", "", "Serve MCP over streamable HTTP on this address instead of stdio")
	envFile := fs.String("env", "", "Path to a .env file to load before resolving configuration")
	configFile := fs.String("config", "", "Path to a YAML config file (env vars still win)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}
	if *showHelp {
		printHelp(out)
		return 0
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(errOut, "mmaudio-mcp: load env file: %v\n", err)
			return 1
		}
	} else {
		// A .env next to the binary is optional.
		godotenv.Load() //nolint:errcheck
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(errOut, "mmaudio-mcp: %v\n", err)
		return 1
	}
	if cfg.APIKey == "" {
		// The server still starts: validate_api_key with an explicit key
		// override works without a configured credential.
		fmt.Fprintln(errOut, "mmaudio-mcp: warning: API_KEY is not set; generation tools will fail until it is configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(cfg)
	if *httpAddr != "" {
		err = srv.ServeHTTP(ctx, *httpAddr)
	} else {
		err = srv.RunStdio(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(errOut, "mmaudio-mcp: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadWithFile(path)
	}
	return config.Load()
}

func printHelp(out io.Writer) {
	helpText := `mmaudio-mcp - MCP server for the MMAudio generation API

Usage:
  mmaudio-mcp [options]

Options:
  --version        Show version information
  --help           Show this help message
  --http <addr>    Serve MCP over streamable HTTP on addr (default: stdio)
  --env <path>     Load environment variables from a .env file
  --config <path>  Load fallback configuration from a YAML file

Environment:
  API_KEY          MMAudio API key (required for generation tools)
  BASE_URL         Upstream API root (default: https://mmaudio.net)
  TIMEOUT_MS       Generation request timeout, 5000-300000 (default: 60000)
  MAX_RETRIES      Retries for transient upstream failures, 0-5 (default: 2)
  RETRY_BASE_MS    Initial retry backoff in milliseconds (default: 500)

Examples:
  mmaudio-mcp
  mmaudio-mcp --http 127.0.0.1:8080
  mmaudio-mcp --env ./.env.production`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
