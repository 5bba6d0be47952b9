package browser

import (
	"os/exec"

	"github.com/jmylchreest/crawlcore/internal/logger"
)

// chromeBinaryNames are common Chrome/Chromium binary names and install
// paths across operating systems, checked in order.
var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	// macOS
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	// Linux
	"/usr/bin/google-chrome-stable",
	"/usr/bin/google-chrome",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/snap/bin/chromium",
	// Windows
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// findChromePath searches PATH and common install locations for a
// Chrome/Chromium binary. Returns "" if none is found, in which case
// chromedp falls back to its own bundled-or-discovered default.
func findChromePath() string {
	for _, name := range chromeBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found chrome binary", "name", name, "path", path)
			return path
		}
	}
	logger.Warn("no chrome binary found on PATH or common install locations")
	return ""
}
