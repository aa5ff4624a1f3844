// Package browser finds, launches and talks to a local Chrome over its
// DevTools HTTP endpoint.
package browser

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// ChromeEnvVar names the environment variable that overrides detection.
const ChromeEnvVar = "BENCHREPORT_CHROME"

// ErrChromeNotFound is returned when no Chrome binary can be located.
var ErrChromeNotFound = errors.New("chrome not found")

func chromePaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
			"headless_shell",
			"chromium",
			"google-chrome",
		}
	default:
		return nil
	}
}

// FindChrome returns the browser binary to launch. BENCHREPORT_CHROME wins
// when set; an invalid value is an error rather than a silent fallback.
func FindChrome() (string, error) {
	if envPath := os.Getenv(ChromeEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s=%s", ErrChromeNotFound, ChromeEnvVar, envPath)
		}
		return envPath, nil
	}

	for _, path := range chromePaths() {
		if found, err := exec.LookPath(path); err == nil {
			return found, nil
		}
	}
	return "", ErrChromeNotFound
}
