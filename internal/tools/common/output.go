package common

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sandeepkv93/erp-identity-core/internal/observability"
	"github.com/sandeepkv93/erp-identity-core/internal/tools/ui"
)

type CIResult struct {
	OK         bool     `json:"ok"`
	Title      string   `json:"title"`
	Details    []string `json:"details,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

func PrintCIResult(ok bool, title string, details []string, err error, elapsed time.Duration) {
	writeCIResult(os.Stdout, ok, title, details, err, elapsed)
}

func writeCIResult(w io.Writer, ok bool, title string, details []string, err error, elapsed time.Duration) {
	result := CIResult{OK: ok, Title: title, Details: details, DurationMS: elapsed.Milliseconds()}
	if err != nil {
		result.Error = err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

type Action func(ctx context.Context) ([]string, error)

// Run executes a tool action either headless (ci) or behind the terminal UI
// and records its outcome.
func Run(tool, command string, ci bool, timeout time.Duration, fn Action) ([]string, error) {
	start := time.Now()
	var (
		details []string
		err     error
	)
	if ci {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		details, err = fn(ctx)
		cancel()
		PrintCIResult(err == nil, tool+" "+command, details, err, time.Since(start))
	} else {
		details, err = ui.Run(tool+" "+command, timeout, fn)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ctx := context.Background()
	observability.RecordToolCommandRun(ctx, tool, command, outcome)
	observability.RecordToolCommandDuration(ctx, tool, command, outcome, time.Since(start))
	return details, err
}

// ExitCode is the process status the command-line tools use on failure.
const ExitCode = 3
