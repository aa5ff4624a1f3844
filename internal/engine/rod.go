package engine

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/grantcarthew/benchreport/internal/browser"
	"github.com/grantcarthew/benchreport/internal/report"
)

// Rod is a Chrome instance launched and driven by go-rod.
type Rod struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	cfg      Config
}

// OpenRod launches Chrome through rod's launcher. The binary found by
// browser.FindChrome is preferred; otherwise rod looks one up itself.
func OpenRod(ctx context.Context, cfg Config) (*Rod, error) {
	l := launcher.New().
		Context(ctx).
		Headless(!cfg.Launch.Headful).
		NoSandbox(cfg.Launch.NoSandbox)

	if bin, err := browser.FindChrome(); err == nil {
		l = l.Bin(bin)
	}
	if cfg.Launch.UserDataDir != "" {
		l = l.UserDataDir(cfg.Launch.UserDataDir)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	cfg.logf("rod: control URL %s", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Rod{launcher: l, browser: b, cfg: cfg}, nil
}

// NewPage opens a blank tab for url.
func (r *Rod) NewPage(ctx context.Context, url string) (report.Page, error) {
	page, err := r.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	r.cfg.logf("rod: page %s for %s", page.TargetID, url)
	return &rodPage{page: page, cfg: r.cfg}, nil
}

// Close closes the browser and removes rod's profile directory.
func (r *Rod) Close() error {
	err := r.browser.Close()
	r.launcher.Kill()
	r.launcher.Cleanup()
	return err
}

type rodPage struct {
	page *rod.Page
	cfg  Config
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

// WaitForText waits for the body text to match text literally.
func (p *rodPage) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	el, err := page.ElementR("body", regexp.QuoteMeta(text))
	if err != nil {
		return err
	}
	return el.Release()
}

// QuerySelector looks the selector up once, without rod's retry loop.
func (p *rodPage) QuerySelector(ctx context.Context, selector string) (report.Element, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, report.ErrNoElement
	}
	p.cfg.logf("rod: query %q -> %s", selector, el.Object.ObjectID)
	return &rodElement{el: el}, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el       *rod.Element
	released bool
}

// Text returns the element's rendered text.
func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Release(ctx context.Context) error {
	if e.released {
		return nil
	}
	e.released = true
	return e.el.Context(ctx).Release()
}
