package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/grantcarthew/benchreport/internal/browser"
	"github.com/grantcarthew/benchreport/internal/cli/format"
	"github.com/grantcarthew/benchreport/internal/engine"
	"github.com/grantcarthew/benchreport/internal/report"
)

// Version is set at build time.
var Version = "dev"

// Debug enables verbose debug output.
var Debug bool

// JSONOutput enables JSON output format (default is text).
var JSONOutput bool

// NoColor disables color output.
var NoColor bool

var rootCmd = &cobra.Command{
	Use:   "benchreport [path]",
	Short: "Print the rendered summary of a benchmark report",
	Long: `benchreport opens a benchmark report HTML file in a headless browser,
waits for the "Benchmark Report" heading to render, and prints the text of
the summary block (body > div > div).

The path defaults to ` + report.DefaultPath + `.

If the heading never renders within --timeout, a warning is printed to
stderr and the summary is read anyway. Any other failure (browser launch,
navigation, missing summary block) exits with status 1 and prints nothing
to stdout.

Engines:
  cdp       Launch Chrome and drive it over the DevTools protocol (default)
  rod       Launch Chrome through go-rod
  chromedp  Launch Chrome through chromedp
  static    Parse the file without a browser; scripts do not run

Environment:
  ` + browser.ChromeEnvVar + `   Path to the Chrome/Chromium binary
  NO_COLOR             Disable colored diagnostics

Examples:
  benchreport
  benchreport ./out/benchmark.html
  benchreport --timeout 5s --json report.html
  benchreport --engine static report.html`,
	Args:          cobra.MaximumNArgs(1),
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRead,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable verbose debug output")
	rootCmd.PersistentFlags().BoolVar(&JSONOutput, "json", false, "Output in JSON format (default is text)")
	rootCmd.PersistentFlags().BoolVar(&NoColor, "no-color", false, "Disable color output")

	rootCmd.Flags().Duration("timeout", report.DefaultTimeout, "Maximum time to wait for the marker text")
	rootCmd.Flags().String("marker", report.DefaultMarker, "Text that signals the report has rendered")
	rootCmd.Flags().String("selector", report.DefaultSelector, "CSS selector of the block to print")
	rootCmd.Flags().String("engine", string(engine.KindCDP), "Browser engine: cdp, rod, chromedp or static")
	rootCmd.Flags().Bool("headful", false, "Show the browser window")
	rootCmd.Flags().Int("port", 0, "Remote debugging port for the cdp engine (0 picks a free port)")
	rootCmd.Flags().Bool("no-sandbox", false, "Launch Chrome with --no-sandbox")

	rootCmd.SetVersionTemplate(`benchreport version {{.Version}}
`)
}

// Execute runs the root command with os.Args.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteArgs runs the root command with args and then resets every flag
// to its default so the next call starts fresh.
func ExecuteArgs(args []string) error {
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	resetFlags := func(flags *pflag.FlagSet) {
		flags.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	resetFlags(rootCmd.Flags())
	resetFlags(rootCmd.PersistentFlags())

	Debug = false
	JSONOutput = false
	NoColor = false

	return err
}

// printedError is an error whose message was already written to stderr.
type printedError struct {
	msg string
}

func (e *printedError) Error() string {
	return e.msg
}

// IsPrintedError reports whether err was already shown to the user.
func IsPrintedError(err error) bool {
	var pe *printedError
	return errors.As(err, &pe)
}

// isStdoutTTY returns true if stdout is a terminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// outputJSON writes data as JSON, pretty printed on a TTY.
func outputJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if isStdoutTTY() {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

// outputSuccess writes a successful response to stdout.
func outputSuccess(data any) error {
	if JSONOutput {
		resp := map[string]any{"ok": true}
		if data != nil {
			resp["data"] = data
		}
		return outputJSON(os.Stdout, resp)
	}
	return format.Summary(os.Stdout, fmt.Sprint(data))
}

// outputError writes an error to stderr and returns it marked as printed.
func outputError(msg string) error {
	if JSONOutput {
		_ = outputJSON(os.Stderr, map[string]any{
			"ok":    false,
			"error": msg,
		})
	} else {
		_ = format.Error(os.Stderr, msg, stderrOptions())
	}
	return &printedError{msg: msg}
}

// outputWarning writes a non-fatal diagnostic to stderr. JSON responses
// also carry it in the payload.
func outputWarning(msg string) {
	_ = format.Warning(os.Stderr, msg, stderrOptions())
}

// stderrOptions determines if diagnostics should be colored based on flags and environment.
func stderrOptions() format.OutputOptions {
	return format.NewOutputOptions(os.Stderr, JSONOutput, NoColor)
}

// debugf writes "[DEBUG] [time] [CATEGORY] message" to stderr when --debug is set.
func debugf(category, format string, args ...any) {
	if !Debug {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(os.Stderr, "[DEBUG] [%s] [%s] %s\n", ts, category, fmt.Sprintf(format, args...))
}

// timer logs how long an operation took in debug mode.
type timer struct {
	name  string
	start time.Time
}

func startTimer(name string) *timer {
	return &timer{name: name, start: time.Now()}
}

func (t *timer) log() {
	debugf("TIMING", "%s took %v", t.name, time.Since(t.start))
}
