package browser

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
)

// LaunchOptions configures how Chrome is started.
type LaunchOptions struct {
	// Headful shows the browser window. The zero value runs headless.
	Headful bool

	// Port for remote debugging. Zero picks a free port.
	Port int

	// NoSandbox disables the Chrome sandbox, needed when running as root
	// in containers.
	NoSandbox bool

	// UserDataDir is the profile directory. Empty creates a temporary
	// one that Close removes.
	UserDataDir string
}

func buildArgs(opts LaunchOptions, port int) []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", port),
		"--remote-debugging-address=127.0.0.1",
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-background-networking",
		"--disable-sync",
		"--disable-extensions",
		// file:// pages may pull sibling assets
		"--allow-file-access-from-files",
	}

	switch runtime.GOOS {
	case "darwin":
		args = append(args, "--use-mock-keychain")
	case "linux":
		args = append(args, "--password-store=basic")
	}

	if !opts.Headful {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	if opts.NoSandbox {
		args = append(args, "--no-sandbox")
	}
	if opts.UserDataDir != "" {
		args = append(args, "--user-data-dir="+opts.UserDataDir)
	}

	return append(args, "about:blank")
}

// freePort asks the kernel for an unused loopback port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func createTempDataDir() (string, error) {
	return os.MkdirTemp("", "benchreport-chrome-*")
}

// spawnProcess starts Chrome without waiting for it. It returns the
// command and, when one was created, the temporary profile directory.
func spawnProcess(binPath string, opts LaunchOptions, port int) (*exec.Cmd, string, error) {
	var tempDir string
	if opts.UserDataDir == "" {
		dir, err := createTempDataDir()
		if err != nil {
			return nil, "", fmt.Errorf("create temp dir: %w", err)
		}
		tempDir = dir
		opts.UserDataDir = dir
	}

	cmd := exec.Command(binPath, buildArgs(opts, port)...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		if tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
		return nil, "", fmt.Errorf("start browser: %w", err)
	}
	return cmd, tempDir, nil
}
