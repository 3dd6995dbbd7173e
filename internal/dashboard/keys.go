package dashboard

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Average       key.Binding
	WindowDown    key.Binding
	WindowUp      key.Binding
	ThresholdDown key.Binding
	ThresholdUp   key.Binding
	Bounds        key.Binding
	Outliers      key.Binding
	Settings      key.Binding
	PrevTab       key.Binding
	NextTab       key.Binding
	Reload        key.Binding
	Quit          key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Average:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "average")),
		WindowDown:    key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "window-")),
		WindowUp:      key.NewBinding(key.WithKeys("=", "+"), key.WithHelp("=", "window+")),
		ThresholdDown: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "threshold-")),
		ThresholdUp:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "threshold+")),
		Bounds:        key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bounds")),
		Outliers:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "outliers")),
		Settings:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "settings")),
		PrevTab:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "tabs")),
		NextTab:       key.NewBinding(key.WithKeys("right", "l")),
		Reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Average, k.WindowDown, k.WindowUp, k.ThresholdDown, k.ThresholdUp,
		k.Bounds, k.Outliers, k.Settings, k.PrevTab, k.Reload, k.Quit,
	}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Average, k.WindowDown, k.WindowUp, k.ThresholdDown, k.ThresholdUp},
		{k.Bounds, k.Outliers, k.Settings},
		{k.PrevTab, k.Reload, k.Quit},
	}
}
