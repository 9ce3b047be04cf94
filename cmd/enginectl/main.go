// Command enginectl is the CLI entrypoint for the multi-agent analysis
// engine: it wires C1-C6 into a running process and exposes two
// commands, grounded on the teacher's cmd/hector CLI shape (Kong,
// signal-driven shutdown, config-then-build ordering).
//
// Usage:
//
//	enginectl serve --config engine.yaml
//	enginectl replay --config engine.yaml --session s1 --message "Summarize review sentiment"
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI is the top-level command set.
type CLI struct {
	Serve  ServeCmd  `cmd:"" help:"Start the turn-handling HTTP server."`
	Replay ReplayCmd `cmd:"" help:"Run one turn without the server and print its events as JSON lines."`

	Config  string `short:"c" help:"Path to the YAML config file." type:"path"`
	EnvFile string `help:"Path to a .env file with secret overrides (API keys)." type:"path"`
}

func main() {
	_ = godotenv.Load()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("enginectl"),
		kong.Description("insightloop engine - multi-agent analysis over tabular data + review corpora"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, "enginectl:", err)
		os.Exit(1)
	}
}
