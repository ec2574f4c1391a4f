// Command streamsync triggers backend executions over the HTTP API and waits
// for their terminal state, polling the authoritative read endpoint when no
// push channel is available.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-logger/glog"

	streamsync "github.com/goliatone/go-streamsync"
	"github.com/goliatone/go-streamsync/client"
)

type globals struct {
	APIURL  string `help:"Execution API base URL." env:"STREAMSYNC_API_URL" default:"http://localhost:8080"`
	Verbose bool   `help:"Enable debug logging." short:"v"`
}

type cli struct {
	globals

	Exec execCmd `cmd:"" help:"Trigger a job and wait for its terminal result."`
}

type execCmd struct {
	JobID   string        `arg:"" help:"Job identifier to execute."`
	Param   []string      `help:"Input parameter as key=value; repeatable." short:"p"`
	Timeout time.Duration `help:"How long to wait for a terminal state." default:"5m"`
	Poll    time.Duration `help:"Polling interval for the read API." default:"2s"`
}

func (c *execCmd) Run(g *globals) error {
	level := "info"
	if g.Verbose {
		level = "debug"
	}
	logger := glog.NewLogger(
		glog.WithLevel(level),
	)

	api, err := client.New(g.APIURL, client.WithLogger(logger))
	if err != nil {
		return err
	}

	input, err := parseParams(c.Param)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	logger.Info("triggering job %s", c.JobID)
	resp, err := api.Trigger(ctx, c.JobID, input)
	if err != nil {
		return err
	}

	if resp.IsTransient && resp.Status.IsTerminal() {
		return printOutcome(resp.Status, resp.Result, resp.Error)
	}

	logger.Info("execution %s accepted, polling for terminal state", resp.ExecutionID)
	ticker := time.NewTicker(c.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return streamsync.CloneError(streamsync.ErrTimeout, "", ctx.Err(),
				map[string]any{"execution_id": resp.ExecutionID})
		case <-ticker.C:
		}

		rec, err := api.Execution(ctx, resp.ExecutionID)
		if err != nil {
			logger.Debug("read failed, retrying: %v", err)
			continue
		}
		if !rec.Status.IsTerminal() {
			logger.Debug("execution %s still %s", resp.ExecutionID, rec.Status)
			continue
		}
		return printOutcome(rec.Status, rec.Result, rec.ErrorMessage)
	}
}

func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

func printOutcome(status streamsync.ExecutionStatus, result any, errMsg string) error {
	if status == streamsync.StatusError {
		return streamsync.CloneError(streamsync.ErrExecutionFailed, errMsg, nil, nil)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"status": status,
		"result": result,
	})
}

func main() {
	var app cli
	ctx := kong.Parse(&app,
		kong.Name("streamsync"),
		kong.Description("Execution synchronization client."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&app.globals)
	ctx.FatalIfErrorf(err)
}
