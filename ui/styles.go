package ui

import (
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
)

// Theme-aware styles for the dialogs.
const appCSS = `
.preferences-card {
    border-radius: 12px;
    border: 1px solid alpha(currentColor, 0.15);
}

.settings-title {
    font-weight: 600;
}

.dialog-action-area {
    padding-top: 4px;
}

.dialog-button {
    min-width: 88px;
}

entry {
    border-radius: 6px;
    min-height: 34px;
}

entry.error {
    border-color: #e01b24;
}

.otp-entry {
    font-family: monospace;
    font-size: 20px;
    letter-spacing: 4px;
}

.session-token {
    font-family: monospace;
    font-size: 12px;
    padding: 6px 10px;
    border-radius: 6px;
    background-color: alpha(currentColor, 0.08);
}
`

// LoadStyles installs the application CSS on the default display.
func LoadStyles() {
	display := gdk.DisplayGetDefault()
	if display == nil {
		return
	}

	provider := gtk.NewCSSProvider()
	provider.LoadFromString(appCSS)

	gtk.StyleContextAddProviderForDisplay(
		display,
		provider,
		gtk.STYLE_PROVIDER_PRIORITY_APPLICATION,
	)
}
