// mmaudio-keycheck checks an MMAudio API key directly, without going through
// an MCP client: it resolves configuration the same way the server does, runs
// the credential check in library mode and prints the result envelope.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmaudio/mmaudio-mcp-go/internal/domain/dispatch"
	"github.com/mmaudio/mmaudio-mcp-go/internal/infra/config"
	"github.com/mmaudio/mmaudio-mcp-go/internal/version"
)

// checkTimeout caps the whole run; the dispatcher applies its own tighter
// per-request deadline.
const checkTimeout = 15 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("mmaudio-keycheck", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	key := fs.String("key", "", "API key to check (defaults to API_KEY from the environment)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	godotenv.Load() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(errOut, "mmaudio-keycheck: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	env := dispatch.New(cfg).ValidateKey(ctx, *key)

	payload, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		fmt.Fprintf(errOut, "mmaudio-keycheck: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, string(payload)) //nolint:errcheck

	if status, ok := env.Result.(dispatch.KeyStatus); ok && status.Valid {
		return 0
	}
	return 1
}
