package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/insightloop/engine/internal/orchestrator"
)

// ReplayCmd drives a single turn through the orchestrator outside of
// the HTTP server and prints every event it publishes to stdout, one
// {"type","data"} JSON object per line — useful for exercising
// the full R1-R6 phase sequence against a fixed session/message pair
// without standing up a server, matching the teacher's dev/cmd tools'
// single-shot debugging convention (dev/cmd/benchmark, dev/cmd/compare).
type ReplayCmd struct {
	Session string `required:"" help:"Session id to replay the turn against (created if it doesn't exist)."`
	User    string `default:"replay-user" help:"User id to attribute the turn to."`
	Message string `required:"" help:"The message text to send."`
}

func (c *ReplayCmd) Run(cli *CLI) error {
	ctx := context.Background()

	e, err := build(ctx, cli.Config, cli.EnvFile)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	bus := e.orc.HandleTurn(ctx, orchestrator.Request{
		SessionID: c.Session,
		UserID:    c.User,
		Message:   c.Message,
	})

	enc := json.NewEncoder(os.Stdout)
	for ev := range bus.Events() {
		if err := enc.Encode(map[string]any{"type": ev.Kind, "data": ev.Data}); err != nil {
			fmt.Fprintln(os.Stderr, "replay: encoding event:", err)
		}
	}

	return nil
}
