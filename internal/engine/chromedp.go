package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/grantcarthew/benchreport/internal/browser"
	"github.com/grantcarthew/benchreport/internal/report"
)

// ChromeDP is a Chrome instance allocated and driven by chromedp.
type ChromeDP struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	cfg           Config
}

// allocatorOptions maps launch options onto chromedp's exec allocator.
// chromedp always picks its own debugging port, so Launch.Port is unused.
func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if cfg.Launch.Headful {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.Launch.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.Launch.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.Launch.UserDataDir))
	}
	if bin, err := browser.FindChrome(); err == nil {
		opts = append(opts, chromedp.ExecPath(bin))
	}
	return opts
}

// OpenChromeDP launches Chrome through chromedp's exec allocator.
func OpenChromeDP(ctx context.Context, cfg Config) (*ChromeDP, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(cfg.logf))

	// The first Run starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	cfg.logf("chromedp: browser started")

	return &ChromeDP{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		cfg:           cfg,
	}, nil
}

// NewPage opens a new tab in the running browser.
func (c *ChromeDP) NewPage(ctx context.Context, url string) (report.Page, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	p := &chromedpPage{ctx: tabCtx, cancel: cancel, cfg: c.cfg}
	if err := p.run(ctx, 0); err != nil {
		cancel()
		return nil, fmt.Errorf("create page: %w", err)
	}
	c.cfg.logf("chromedp: tab for %s", url)
	return p, nil
}

// Close stops the browser and waits for chromedp to clean up.
func (c *ChromeDP) Close() error {
	err := chromedp.Cancel(c.browserCtx)
	c.cancelBrowser()
	c.cancelAlloc()
	return err
}

type chromedpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
}

// run executes actions on the tab. Cancelling ctx or exceeding timeout
// aborts the actions without closing the tab.
func (p *chromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, 0, chromedp.Navigate(url))
}

// WaitForText polls the body's innerText until it contains text.
func (p *chromedpPage) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	expr := fmt.Sprintf("document.body !== null && document.body.innerText.includes(%s)", jsString(text))

	var found bool
	err := p.run(ctx, timeout, chromedp.Poll(expr, &found, chromedp.WithPollingInterval(pollInterval)))
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("timeout after %s: %w", timeout, err)
	}
	return err
}

// QuerySelector resolves document.querySelector(selector) once.
func (p *chromedpPage) QuerySelector(ctx context.Context, selector string) (report.Element, error) {
	var obj *runtime.RemoteObject
	err := p.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.Evaluate(fmt.Sprintf("document.querySelector(%s)", jsString(selector))).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		obj = res
		return nil
	}))
	if err != nil {
		return nil, err
	}
	if obj.Subtype == runtime.SubtypeNull || obj.ObjectID == "" {
		return nil, report.ErrNoElement
	}
	p.cfg.logf("chromedp: query %q -> %s", selector, obj.ObjectID)
	return &chromedpElement{page: p, objectID: obj.ObjectID}, nil
}

// Close closes the tab.
func (p *chromedpPage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}

type chromedpElement struct {
	page     *chromedpPage
	objectID runtime.RemoteObjectID
	released bool
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.page.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.CallFunctionOn("function() { return this.innerText; }").
			WithObjectID(e.objectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if len(res.Value) == 0 {
			return nil
		}
		if err := json.Unmarshal(res.Value, &text); err != nil {
			return fmt.Errorf("innerText is %s, not a string", res.Type)
		}
		return nil
	}))
	return text, err
}

// Release frees the remote object. Releasing twice is a no-op.
func (e *chromedpElement) Release(ctx context.Context) error {
	if e.released {
		return nil
	}
	e.released = true
	return e.page.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		return runtime.ReleaseObject(e.objectID).Do(ctx)
	}))
}
