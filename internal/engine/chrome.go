package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/grantcarthew/benchreport/internal/browser"
	"github.com/grantcarthew/benchreport/internal/cdp"
	"github.com/grantcarthew/benchreport/internal/report"
)

// pollInterval is how often WaitForText re-checks the page.
const pollInterval = 100 * time.Millisecond

// Chrome is a launched Chrome process driven over CDP.
type Chrome struct {
	browser *browser.Browser
	cfg     Config
}

// OpenChrome launches Chrome with cfg.Launch.
func OpenChrome(ctx context.Context, cfg Config) (*Chrome, error) {
	b, err := browser.Start(ctx, cfg.Launch)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	version := "unknown"
	if info, err := b.Version(ctx); err == nil {
		version = info.Browser
	}
	cfg.logf("chrome started pid=%d port=%d version=%s", b.PID(), b.Port(), version)
	return &Chrome{browser: b, cfg: cfg}, nil
}

// NewPage opens a blank tab for url and connects to it. The tab loads url
// on Navigate.
func (c *Chrome) NewPage(ctx context.Context, url string) (report.Page, error) {
	target, err := c.browser.NewPage(ctx, "about:blank")
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	c.cfg.logf("page target %s for %s", target.ID, url)

	client, err := cdp.Dial(ctx, target.WebSocketURL)
	if err != nil {
		_ = c.browser.ClosePage(ctx, target.ID)
		return nil, err
	}

	p := newCDPPage(client, c.cfg)
	p.closeTarget = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return c.browser.ClosePage(ctx, target.ID)
	}
	return p, nil
}

// Close stops Chrome.
func (c *Chrome) Close() error {
	return c.browser.Close()
}

// remoteObject is the subset of Runtime.RemoteObject used here.
type remoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

type exceptionDetails struct {
	Text      string        `json:"text"`
	Exception *remoteObject `json:"exception,omitempty"`
}

func (e *exceptionDetails) Error() string {
	if e.Exception != nil && e.Exception.Description != "" {
		return "javascript error: " + e.Exception.Description
	}
	return "javascript error: " + e.Text
}

// evalResult is the reply shape of Runtime.evaluate and
// Runtime.callFunctionOn.
type evalResult struct {
	Result           remoteObject      `json:"result"`
	ExceptionDetails *exceptionDetails `json:"exceptionDetails,omitempty"`
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// cdpPage drives one page target.
type cdpPage struct {
	client      *cdp.Client
	cfg         Config
	closeTarget func() error
}

func newCDPPage(client *cdp.Client, cfg Config) *cdpPage {
	return &cdpPage{client: client, cfg: cfg}
}

func (p *cdpPage) evaluate(ctx context.Context, params map[string]any) (*remoteObject, error) {
	var res evalResult
	if err := p.client.Call(ctx, "Runtime.evaluate", params, &res); err != nil {
		return nil, err
	}
	if res.ExceptionDetails != nil {
		return nil, res.ExceptionDetails
	}
	return &res.Result, nil
}

// Navigate loads url and waits for the load event.
func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	loaded := make(chan struct{}, 1)
	unsubscribe := p.client.Subscribe("Page.loadEventFired", func(cdp.Event) {
		select {
		case loaded <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := p.client.Call(ctx, "Page.enable", nil, nil); err != nil {
		return fmt.Errorf("enable page events: %w", err)
	}

	var nav struct {
		FrameID   string `json:"frameId"`
		ErrorText string `json:"errorText"`
	}
	if err := p.client.Call(ctx, "Page.navigate", map[string]any{"url": url}, &nav); err != nil {
		return err
	}
	if nav.ErrorText != "" {
		return fmt.Errorf("navigation failed: %s", nav.ErrorText)
	}
	p.cfg.logf("navigate: frame %s loading %s", nav.FrameID, url)

	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cdp.DefaultTimeout):
		return errors.New("timeout waiting for page load")
	}
}

// WaitForText polls the body's innerText until it contains text.
func (p *cdpPage) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	expr := fmt.Sprintf("document.body !== null && document.body.innerText.includes(%s)", jsString(text))
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		obj, err := p.evaluate(ctx, map[string]any{
			"expression":    expr,
			"returnByValue": true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("timeout after %s: %w", timeout, ctx.Err())
			}
			return err
		}
		if string(obj.Value) == "true" {
			p.cfg.logf("wait: %q found after %d checks", text, attempt)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout after %s: %w", timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// QuerySelector resolves document.querySelector(selector) to a remote
// object handle.
func (p *cdpPage) QuerySelector(ctx context.Context, selector string) (report.Element, error) {
	obj, err := p.evaluate(ctx, map[string]any{
		"expression": fmt.Sprintf("document.querySelector(%s)", jsString(selector)),
	})
	if err != nil {
		return nil, err
	}
	if obj.Subtype == "null" || obj.ObjectID == "" {
		return nil, report.ErrNoElement
	}
	p.cfg.logf("query: %q -> %s", selector, obj.ObjectID)
	return &cdpElement{client: p.client, objectID: obj.ObjectID}, nil
}

// Close disconnects and closes the target.
func (p *cdpPage) Close() error {
	err := p.client.Close()
	if p.closeTarget != nil {
		if cerr := p.closeTarget(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// cdpElement is a remote object handle for one node.
type cdpElement struct {
	client   *cdp.Client
	objectID string
	released bool
}

// Text returns the node's innerText.
func (e *cdpElement) Text(ctx context.Context) (string, error) {
	var res evalResult
	err := e.client.Call(ctx, "Runtime.callFunctionOn", map[string]any{
		"objectId":            e.objectID,
		"functionDeclaration": "function() { return this.innerText; }",
		"returnByValue":       true,
	}, &res)
	if err != nil {
		return "", err
	}
	if res.ExceptionDetails != nil {
		return "", res.ExceptionDetails
	}

	var text string
	if len(res.Result.Value) > 0 {
		if err := json.Unmarshal(res.Result.Value, &text); err != nil {
			return "", fmt.Errorf("innerText is %s, not a string", res.Result.Type)
		}
	}
	return text, nil
}

// Release frees the remote object. Releasing twice is a no-op.
func (e *cdpElement) Release(ctx context.Context) error {
	if e.released {
		return nil
	}
	e.released = true
	return e.client.Call(ctx, "Runtime.releaseObject", map[string]any{"objectId": e.objectID}, nil)
}
