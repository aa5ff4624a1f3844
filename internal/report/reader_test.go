package report

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// fakeEngine serves a single fakePage.
type fakeEngine struct {
	page    *fakePage
	newErr  error
	openURL string
}

func (e *fakeEngine) NewPage(ctx context.Context, url string) (Page, error) {
	if e.newErr != nil {
		return nil, e.newErr
	}
	e.openURL = url
	return e.page, nil
}

func (e *fakeEngine) Close() error { return nil }

// fakePage simulates a rendered document: its text content and the
// elements each selector resolves to.
type fakePage struct {
	text     string
	elements map[string]*fakeElement

	navErr      error
	navigatedTo string
	waitedFor   string
	waitTimeout time.Duration
	queriedFor  string
	closed      bool
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navigatedTo = url
	return p.navErr
}

func (p *fakePage) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	p.waitedFor = text
	p.waitTimeout = timeout
	if !strings.Contains(p.text, text) {
		return context.DeadlineExceeded
	}
	return nil
}

func (p *fakePage) QuerySelector(ctx context.Context, selector string) (Element, error) {
	p.queriedFor = selector
	el, ok := p.elements[selector]
	if !ok {
		return nil, ErrNoElement
	}
	return el, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeElement struct {
	text       string
	textErr    error
	releaseErr error
	releases   int
}

func (e *fakeElement) Text(ctx context.Context) (string, error) {
	if e.textErr != nil {
		return "", e.textErr
	}
	return e.text, nil
}

func (e *fakeElement) Release(ctx context.Context) error {
	e.releases++
	return e.releaseErr
}

func reportPage(el *fakeElement) *fakePage {
	return &fakePage{
		text:     "Benchmark Report\nTotal: 42ms",
		elements: map[string]*fakeElement{DefaultSelector: el},
	}
}

func mustLocation(t *testing.T, args ...string) Location {
	t.Helper()
	loc, err := ResolveLocation(args)
	if err != nil {
		t.Fatalf("ResolveLocation: %v", err)
	}
	return loc
}

func TestResolveLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantPath string
		wantURL  string
	}{
		{
			name:     "no args uses default",
			args:     nil,
			wantPath: "/tmp/benchmark.html",
			wantURL:  "file:///tmp/benchmark.html",
		},
		{
			name:     "empty arg uses default",
			args:     []string{""},
			wantPath: "/tmp/benchmark.html",
			wantURL:  "file:///tmp/benchmark.html",
		},
		{
			name:     "explicit path",
			args:     []string{"/var/tmp/run-7.html"},
			wantPath: "/var/tmp/run-7.html",
			wantURL:  "file:///var/tmp/run-7.html",
		},
		{
			name:     "path with space is escaped",
			args:     []string{"/tmp/my report.html"},
			wantPath: "/tmp/my report.html",
			wantURL:  "file:///tmp/my%20report.html",
		},
		{
			name:     "extra args ignored",
			args:     []string{"/tmp/a.html", "/tmp/b.html"},
			wantPath: "/tmp/a.html",
			wantURL:  "file:///tmp/a.html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			loc, err := ResolveLocation(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if loc.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", loc.Path, tt.wantPath)
			}
			if loc.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", loc.URL, tt.wantURL)
			}
		})
	}
}

func TestResolveLocation_RelativePathIsAbsolute(t *testing.T) {
	t.Parallel()

	loc := mustLocation(t, "out/benchmark.html")
	if !filepath.IsAbs(loc.Path) {
		t.Errorf("expected absolute path, got %s", loc.Path)
	}
	if loc.Path == DefaultPath {
		t.Error("override must never resolve to the default")
	}
}

func TestResolveLocation_WhitespaceArgIsAPath(t *testing.T) {
	t.Parallel()

	loc := mustLocation(t, "  ")
	if loc.Path == DefaultPath {
		t.Fatal("only an empty argument falls back to the default")
	}
	if filepath.Base(loc.Path) != "  " {
		t.Errorf("expected the argument as file name, got %q", loc.Path)
	}
}

func TestReader_HappyPath(t *testing.T) {
	t.Parallel()

	el := &fakeElement{text: "Total: 42ms"}
	page := reportPage(el)
	engine := &fakeEngine{page: page}
	loc := mustLocation(t)

	res, err := New(engine, Options{}).Read(context.Background(), loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "Total: 42ms" {
		t.Errorf("Text = %q, want %q", res.Text, "Total: 42ms")
	}
	if !res.MarkerFound || res.WaitErr != nil {
		t.Errorf("expected marker found, got found=%v err=%v", res.MarkerFound, res.WaitErr)
	}
	if engine.openURL != loc.URL || page.navigatedTo != loc.URL {
		t.Errorf("expected page opened and navigated to %s, got %s / %s", loc.URL, engine.openURL, page.navigatedTo)
	}
	if page.waitedFor != DefaultMarker {
		t.Errorf("waited for %q, want %q", page.waitedFor, DefaultMarker)
	}
	if page.queriedFor != DefaultSelector {
		t.Errorf("queried %q, want %q", page.queriedFor, DefaultSelector)
	}
	if el.releases != 1 {
		t.Errorf("expected 1 release, got %d", el.releases)
	}
	if !page.closed {
		t.Error("expected page to be closed")
	}
}

func TestReader_WaitFailureIsTolerated(t *testing.T) {
	t.Parallel()

	el := &fakeElement{text: ""}
	page := &fakePage{
		text:     "Loading...",
		elements: map[string]*fakeElement{DefaultSelector: el},
	}

	res, err := New(&fakeEngine{page: page}, Options{Timeout: time.Second}).Read(context.Background(), mustLocation(t))
	if err != nil {
		t.Fatalf("wait failure must not fail the read: %v", err)
	}
	if res.MarkerFound {
		t.Error("expected MarkerFound=false")
	}

	var waitErr *WaitError
	if !errors.As(res.WaitErr, &waitErr) {
		t.Fatalf("expected *WaitError, got %T", res.WaitErr)
	}
	if waitErr.Marker != DefaultMarker {
		t.Errorf("marker = %q, want %q", waitErr.Marker, DefaultMarker)
	}
	if !errors.Is(res.WaitErr, context.DeadlineExceeded) {
		t.Errorf("expected wrapped DeadlineExceeded, got %v", res.WaitErr)
	}
	want := `wait for text "Benchmark Report" failed: context deadline exceeded`
	if res.WaitErr.Error() != want {
		t.Errorf("diagnostic = %q, want %q", res.WaitErr.Error(), want)
	}
	if page.waitTimeout != time.Second {
		t.Errorf("timeout = %v, want 1s", page.waitTimeout)
	}
	if el.releases != 1 {
		t.Errorf("element must be released after a failed wait, got %d releases", el.releases)
	}
}

func TestReader_NoElementIsFatal(t *testing.T) {
	t.Parallel()

	page := &fakePage{text: "Benchmark Report", elements: map[string]*fakeElement{}}

	res, err := New(&fakeEngine{page: page}, Options{}).Read(context.Background(), mustLocation(t))
	if res != nil {
		t.Errorf("expected nil result, got %+v", res)
	}
	if !errors.Is(err, ErrNoElement) {
		t.Fatalf("expected ErrNoElement, got %v", err)
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %T", err)
	}
	if stageErr.Stage != StageWaited {
		t.Errorf("stage = %s, want %s", stageErr.Stage, StageWaited)
	}
	if err.Error() != `query "body > div > div": no element matched` {
		t.Errorf("unexpected message: %s", err)
	}
}

func TestReader_ReleasesElementWhenTextFails(t *testing.T) {
	t.Parallel()

	textErr := errors.New("execution context was destroyed")
	el := &fakeElement{textErr: textErr}

	_, err := New(&fakeEngine{page: reportPage(el)}, Options{}).Read(context.Background(), mustLocation(t))
	if !errors.Is(err, textErr) {
		t.Fatalf("expected text error, got %v", err)
	}
	if el.releases != 1 {
		t.Errorf("expected 1 release, got %d", el.releases)
	}
}

func TestReader_ReleaseFailureIsFatal(t *testing.T) {
	t.Parallel()

	releaseErr := errors.New("object reference not found")
	el := &fakeElement{text: "Total: 42ms", releaseErr: releaseErr}

	res, err := New(&fakeEngine{page: reportPage(el)}, Options{}).Read(context.Background(), mustLocation(t))
	if !errors.Is(err, releaseErr) {
		t.Fatalf("expected release error, got %v", err)
	}
	if res != nil {
		t.Errorf("expected no result, got %+v", res)
	}
}

func TestReader_TextErrorWinsOverReleaseError(t *testing.T) {
	t.Parallel()

	textErr := errors.New("text failed")
	el := &fakeElement{textErr: textErr, releaseErr: errors.New("release failed")}

	_, err := New(&fakeEngine{page: reportPage(el)}, Options{}).Read(context.Background(), mustLocation(t))
	if !errors.Is(err, textErr) {
		t.Errorf("expected text error, got %v", err)
	}
}

func TestReader_OpenAndNavigateFailuresAreFatal(t *testing.T) {
	t.Parallel()

	openErr := errors.New("chrome not found")
	_, err := New(&fakeEngine{newErr: openErr}, Options{}).Read(context.Background(), mustLocation(t))
	if !errors.Is(err, openErr) {
		t.Errorf("expected open error, got %v", err)
	}

	navErr := errors.New("net::ERR_FILE_NOT_FOUND")
	el := &fakeElement{text: "x"}
	page := reportPage(el)
	page.navErr = navErr

	_, err = New(&fakeEngine{page: page}, Options{}).Read(context.Background(), mustLocation(t))
	if !errors.Is(err, navErr) {
		t.Errorf("expected navigate error, got %v", err)
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) && stageErr.Stage != StageInit {
		t.Errorf("stage = %s, want %s", stageErr.Stage, StageInit)
	}
	if page.waitedFor != "" || el.releases != 0 {
		t.Error("no step may run after a fatal navigate failure")
	}
	if !page.closed {
		t.Error("page must be closed after a fatal failure")
	}
}

func TestReader_StageSequence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []Stage
	}{
		{
			name: "marker present",
			text: "Benchmark Report",
			want: []Stage{StageInit, StageNavigated, StageWaited, StageLocated, StageExtracted, StageDisposed},
		},
		{
			name: "marker missing",
			text: "",
			want: []Stage{StageInit, StageNavigated, StageWaitFailed, StageLocated, StageExtracted, StageDisposed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := reportPage(&fakeElement{text: "Total: 42ms"})
			page.text = tt.text

			var got []Stage
			r := New(&fakeEngine{page: page}, Options{})
			r.OnStage = func(s Stage) { got = append(got, s) }

			if _, err := r.Read(context.Background(), mustLocation(t)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("stages = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReader_CustomOptions(t *testing.T) {
	t.Parallel()

	el := &fakeElement{text: "p99: 3ms"}
	page := &fakePage{
		text:     "Latency Report",
		elements: map[string]*fakeElement{"#summary": el},
	}

	r := New(&fakeEngine{page: page}, Options{Marker: "Latency Report", Selector: "#summary", Timeout: 5 * time.Second})
	res, err := r.Read(context.Background(), mustLocation(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "p99: 3ms" || !res.MarkerFound {
		t.Errorf("unexpected result: %+v", res)
	}
	if got := r.Options().Timeout; got != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", got)
	}
}

func TestStage_String(t *testing.T) {
	t.Parallel()

	if got := StageWaitFailed.String(); got != "wait-failed" {
		t.Errorf("got %q", got)
	}
	if got := Stage(99).String(); got != "stage(99)" {
		t.Errorf("got %q", got)
	}
}
