package launcher

import (
	"io"

	"github.com/pkg/browser"
)

func init() {
	// xdg-open and friends chatter on the terminal; keep the launcher output clean.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// OpenBrowser opens url in the user's default browser.
func OpenBrowser(url string) error {
	return browser.OpenURL(url)
}
