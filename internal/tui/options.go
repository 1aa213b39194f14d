package tui

import "github.com/atotto/clipboard"

// ClipboardWriter copies text to the system clipboard.
type ClipboardWriter func(string) error

type Option func(*Model)

// DefaultClipboardWriter writes through the platform clipboard.
func DefaultClipboardWriter() ClipboardWriter {
	return clipboard.WriteAll
}

func WithConfirmReset(confirm bool) Option {
	return func(m *Model) {
		m.confirmReset = confirm
	}
}

func WithShowTimeline(show bool) Option {
	return func(m *Model) {
		m.showTimeline = show
	}
}

func WithClipboard(write ClipboardWriter) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

// WithProject selects one project by id once projects load.
func WithProject(projectID string) Option {
	return func(m *Model) {
		m.pendingProjectID = projectID
	}
}
