package chart

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset holds the widget look shared by all adapters.
type Preset struct {
	Exchange  string   `yaml:"exchange"`
	Theme     string   `yaml:"theme"`
	Timezone  string   `yaml:"timezone"`
	Locale    string   `yaml:"locale"`
	ToolbarBG string   `yaml:"toolbar_bg"`
	Studies   []string `yaml:"studies"`
	UpColor   string   `yaml:"up_color"`
	DownColor string   `yaml:"down_color"`
	LineColor string   `yaml:"line_color"`
}

// DefaultPreset matches the dark dashboard theme.
func DefaultPreset() Preset {
	return Preset{
		Exchange:  "NASDAQ",
		Theme:     "dark",
		Timezone:  "Etc/UTC",
		Locale:    "en",
		ToolbarBG: "#111",
		Studies:   []string{"RSI@tv-basicstudies", "MACD@tv-basicstudies"},
		UpColor:   "#00c853",
		DownColor: "#d32f2f",
		LineColor: "#4f8cff",
	}
}

// LoadPreset reads a YAML preset file. Keys left out keep their default value.
func LoadPreset(path string) (Preset, error) {
	p := DefaultPreset()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("chart preset: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("chart preset: %w", err)
	}
	if p.Exchange == "" {
		return Preset{}, fmt.Errorf("chart preset: exchange must not be empty")
	}
	return p, nil
}
