package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grantcarthew/benchreport/internal/browser"
	"github.com/grantcarthew/benchreport/internal/engine"
	"github.com/grantcarthew/benchreport/internal/report"
)

// readData is the JSON payload of a successful read.
type readData struct {
	URL         string `json:"url"`
	Text        string `json:"text"`
	MarkerFound bool   `json:"markerFound"`
	Warning     string `json:"warning,omitempty"`
}

func runRead(cmd *cobra.Command, args []string) error {
	t := startTimer("read")
	defer t.log()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	marker, _ := cmd.Flags().GetString("marker")
	selector, _ := cmd.Flags().GetString("selector")
	engineName, _ := cmd.Flags().GetString("engine")
	headful, _ := cmd.Flags().GetBool("headful")
	port, _ := cmd.Flags().GetInt("port")
	noSandbox, _ := cmd.Flags().GetBool("no-sandbox")

	kind, err := engine.ParseKind(engineName)
	if err != nil {
		return outputError(err.Error())
	}

	loc, err := report.ResolveLocation(args)
	if err != nil {
		return outputError(err.Error())
	}
	debugf("READ", "location=%s engine=%s timeout=%v marker=%q selector=%q", loc.URL, kind, timeout, marker, selector)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engineFactory.Open(ctx, kind, engine.Config{
		Launch: browser.LaunchOptions{
			Headful:   headful,
			Port:      port,
			NoSandbox: noSandbox,
		},
		Logf: func(format string, args ...any) { debugf("ENGINE", format, args...) },
	})
	if err != nil {
		return outputError(err.Error())
	}
	defer func() {
		if err := eng.Close(); err != nil {
			debugf("ENGINE", "close: %v", err)
		}
	}()

	r := report.New(eng, report.Options{
		Marker:   marker,
		Selector: selector,
		Timeout:  timeout,
	})
	r.OnStage = func(s report.Stage) { debugf("STAGE", "%s", s) }

	res, err := r.Read(ctx, loc)
	if err != nil {
		return outputError(err.Error())
	}

	if res.WaitErr != nil {
		outputWarning(res.WaitErr.Error())
	}

	if JSONOutput {
		data := readData{URL: res.Location.URL, Text: res.Text, MarkerFound: res.MarkerFound}
		if res.WaitErr != nil {
			data.Warning = res.WaitErr.Error()
		}
		return outputSuccess(data)
	}
	return outputSuccess(res.Text)
}
