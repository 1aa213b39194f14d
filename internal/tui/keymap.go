package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit        key.Binding
	reload      key.Binding
	toggleHelp  key.Binding
	moveUp      key.Binding
	moveDown    key.Binding
	nextProject key.Binding
	prevProject key.Binding
	crash       key.Binding
	reset       key.Binding
	recompute   key.Binding
	report      key.Binding
	copyReport  key.Binding
	runLog      key.Binding
	sample      key.Binding
	back        key.Binding
}

// KeyConfig holds user overrides for the schedule action bindings.
type KeyConfig struct {
	Crash     string
	Reset     string
	Recompute string
	Report    string
	Copy      string
	RunLog    string
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:      key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
		toggleHelp:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "activity up")),
		moveDown:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "activity down")),
		nextProject: key.NewBinding(key.WithKeys("tab", "l", "right"), key.WithHelp("tab/l", "next project")),
		prevProject: key.NewBinding(key.WithKeys("shift+tab", "h", "left"), key.WithHelp("shift+tab/h", "previous project")),
		crash:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "crash one unit")),
		reset:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset all")),
		recompute:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recompute")),
		report:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "markdown report")),
		copyReport:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy report")),
		runLog:      key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "run log")),
		sample:      key.NewBinding(key.WithKeys("S", "shift+s"), key.WithHelp("S", "load sample")),
		back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

// applyConfig applies configured key overrides to the action bindings.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.crash, cfg.Crash, "c", "crash one unit")
	configureBinding(&k.reset, cfg.Reset, "x", "reset all")
	configureBinding(&k.recompute, cfg.Recompute, "r", "recompute")
	configureBinding(&k.report, cfg.Report, "m", "markdown report")
	configureBinding(&k.copyReport, cfg.Copy, "y", "copy report")
	configureBinding(&k.runLog, cfg.RunLog, "v", "run log")
}

// configureBinding replaces one binding with keys parsed from raw, or fallback when raw is blank.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	*b = key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

// parseBindingKeys converts one configured key into matcher keys and help text.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "space") {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.crash, k.reset, k.recompute, k.report, k.runLog, k.nextProject, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.crash, k.reset, k.recompute, k.report, k.copyReport, k.runLog},
		{k.moveUp, k.moveDown, k.nextProject, k.prevProject, k.back},
		{k.sample, k.reload, k.toggleHelp, k.quit},
	}
}
