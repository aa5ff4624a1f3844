package main

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/grantcarthew/benchreport/internal/cli"
)

var tooManyArgs = regexp.MustCompile(`accepts at most \d+ arg\(s\), received (\d+)`)

// formatCobraError converts verbose Cobra errors to user-friendly messages.
func formatCobraError(err error) string {
	msg := err.Error()

	if m := tooManyArgs.FindStringSubmatch(msg); m != nil {
		return fmt.Sprintf("expected at most one report path, got %s", m[1])
	}

	return msg
}

func main() {
	if err := cli.Execute(); err != nil {
		if !cli.IsPrintedError(err) {
			msg := formatCobraError(err)
			if cli.JSONOutput {
				_ = json.NewEncoder(os.Stderr).Encode(map[string]any{
					"ok":    false,
					"error": msg,
				})
			} else {
				fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
			}
		}
		os.Exit(1)
	}
}
