package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Host is the loopback address Chrome listens on.
const Host = "127.0.0.1"

// StartTimeout bounds how long Start waits for the DevTools endpoint.
const StartTimeout = 30 * time.Second

// ErrStartTimeout is returned when the DevTools endpoint never came up.
var ErrStartTimeout = errors.New("browser start timeout")

// Browser is a running Chrome process with remote debugging enabled.
type Browser struct {
	cmd     *exec.Cmd
	port    int
	tempDir string
}

// Start locates Chrome and launches it.
func Start(ctx context.Context, opts LaunchOptions) (*Browser, error) {
	binPath, err := FindChrome()
	if err != nil {
		return nil, err
	}
	return StartWithBinary(ctx, binPath, opts)
}

// StartWithBinary launches binPath and waits until /json/version answers.
func StartWithBinary(ctx context.Context, binPath string, opts LaunchOptions) (*Browser, error) {
	port := opts.Port
	if port == 0 {
		p, err := freePort()
		if err != nil {
			return nil, err
		}
		port = p
	}

	cmd, tempDir, err := spawnProcess(binPath, opts, port)
	if err != nil {
		return nil, err
	}
	b := &Browser{cmd: cmd, port: port, tempDir: tempDir}

	waitCtx, cancel := context.WithTimeout(ctx, StartTimeout)
	defer cancel()
	if err := b.waitForCDP(waitCtx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// waitForCDP polls the version endpoint every 100ms.
func (b *Browser) waitForCDP(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ErrStartTimeout
		case <-ticker.C:
			if _, err := FetchVersion(ctx, Host, b.port); err == nil {
				return nil
			}
		}
	}
}

// Port returns the remote debugging port.
func (b *Browser) Port() int {
	return b.port
}

// PID returns the browser process ID, or 0 once closed.
func (b *Browser) PID() int {
	if b.cmd == nil || b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

// NewPage opens a new tab already pointed at url.
func (b *Browser) NewPage(ctx context.Context, url string) (*Target, error) {
	return NewTarget(ctx, Host, b.port, url)
}

// ClosePage closes a tab opened with NewPage.
func (b *Browser) ClosePage(ctx context.Context, id string) error {
	return CloseTarget(ctx, Host, b.port, id)
}

// Version fetches the browser version information.
func (b *Browser) Version(ctx context.Context) (*VersionInfo, error) {
	return FetchVersion(ctx, Host, b.port)
}

// Close stops the process and removes a temporary profile. It is safe to
// call more than once.
func (b *Browser) Close() error {
	if b.cmd == nil || b.cmd.Process == nil {
		return nil
	}

	if err := b.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = b.cmd.Process.Kill()
	}

	done := make(chan struct{})
	go func() {
		_ = b.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = b.cmd.Process.Kill()
		<-done
	}

	if b.tempDir != "" {
		if err := os.RemoveAll(b.tempDir); err != nil {
			return fmt.Errorf("remove profile: %w", err)
		}
	}
	b.cmd = nil
	return nil
}
