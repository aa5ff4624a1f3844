// Package report reads the rendered summary out of a benchmark report page.
//
// A read opens the report in a page, waits for the marker text, then takes
// the text of one element. Only the marker wait may fail without failing
// the read; every other failure is returned as a *StageError.
package report

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultMarker   = "Benchmark Report"
	DefaultSelector = "body > div > div"
	DefaultTimeout  = 30 * time.Second
)

// Options tunes a Reader. Zero fields take the defaults above.
type Options struct {
	Marker   string
	Selector string
	Timeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Marker == "" {
		o.Marker = DefaultMarker
	}
	if o.Selector == "" {
		o.Selector = DefaultSelector
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Result is the outcome of a successful read.
type Result struct {
	Location Location
	Text     string

	// MarkerFound is false when the marker wait failed; WaitErr holds why.
	MarkerFound bool
	WaitErr     error
}

// WaitError is the tolerated marker-wait failure, named after its marker.
type WaitError struct {
	Marker string
	Err    error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait for text %q failed: %v", e.Marker, e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}

// Reader runs reads against an Engine.
type Reader struct {
	engine Engine
	opts   Options

	// OnStage, when set, is called on every stage transition.
	OnStage func(Stage)
}

// New returns a Reader using engine.
func New(engine Engine, opts Options) *Reader {
	return &Reader{engine: engine, opts: opts.withDefaults()}
}

// Options returns the effective options.
func (r *Reader) Options() Options {
	return r.opts
}

func (r *Reader) enter(s Stage) {
	if r.OnStage != nil {
		r.OnStage(s)
	}
}

// Read opens loc, waits for the marker and returns the selected element's
// text. The element handle is released before Read returns on every path
// that acquired it.
func (r *Reader) Read(ctx context.Context, loc Location) (*Result, error) {
	stage := StageInit
	fail := func(op string, err error) (*Result, error) {
		return nil, &StageError{Stage: stage, Op: op, Err: err}
	}
	advance := func(s Stage) {
		stage = s
		r.enter(s)
	}
	r.enter(StageInit)

	page, err := r.engine.NewPage(ctx, loc.URL)
	if err != nil {
		return fail("open page", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.Navigate(ctx, loc.URL); err != nil {
		return fail("navigate to "+loc.URL, err)
	}
	advance(StageNavigated)

	res := &Result{Location: loc, MarkerFound: true}
	if err := page.WaitForText(ctx, r.opts.Marker, r.opts.Timeout); err != nil {
		res.MarkerFound = false
		res.WaitErr = &WaitError{Marker: r.opts.Marker, Err: err}
		advance(StageWaitFailed)
	} else {
		advance(StageWaited)
	}

	el, err := page.QuerySelector(ctx, r.opts.Selector)
	if err != nil {
		return fail(fmt.Sprintf("query %q", r.opts.Selector), err)
	}
	advance(StageLocated)

	text, err := r.extract(ctx, el, advance)
	if err != nil {
		return fail("extract text", err)
	}

	res.Text = text
	return res, nil
}

// extract reads the element text and always releases the element. A
// release failure is reported only when the read itself succeeded.
func (r *Reader) extract(ctx context.Context, el Element, advance func(Stage)) (text string, err error) {
	defer func() {
		if rerr := el.Release(ctx); rerr != nil {
			if err == nil {
				text, err = "", fmt.Errorf("release element: %w", rerr)
			}
			return
		}
		if err == nil {
			advance(StageDisposed)
		}
	}()

	text, err = el.Text(ctx)
	if err != nil {
		return "", err
	}
	advance(StageExtracted)
	return text, nil
}
