// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/tuivoc/internal/model"
)

// Defaults applied when neither the config file nor a flag sets a value.
const (
	DefaultInterval     = 10 * time.Second
	DefaultWordColor    = "#61afef"
	DefaultFontColor    = "#abb2bf"
	DefaultExampleColor = "#c8ccd4"
	DefaultSpeechLang   = "en-US"
	DefaultSpeechRate   = 1.0
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Session    SessionConfig    `toml:"session"`
	Appearance AppearanceConfig `toml:"appearance"`
	Speech     SpeechConfig     `toml:"speech"`
}

// SessionConfig maps session-related settings.
type SessionConfig struct {
	File         *string `toml:"file"`
	Interval     *int    `toml:"interval"`
	PauseOnFocus *bool   `toml:"pause-on-focus"`
}

// AppearanceConfig maps colors and layout settings.
type AppearanceConfig struct {
	WordColor    *string `toml:"word-color"`
	FontColor    *string `toml:"font-color"`
	ExampleColor *string `toml:"example-color"`
	ShowExample  *bool   `toml:"show-example"`
}

// SpeechConfig maps text-to-speech settings.
type SpeechConfig struct {
	Command *string  `toml:"command"`
	Lang    *string  `toml:"lang"`
	Rate    *float64 `toml:"rate"`
	Auto    *bool    `toml:"auto"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ModTime returns the config file's modification time, or the zero time when
// it does not exist.
func ModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Resolve fills unset values with defaults.
func Resolve(fc FileConfig) model.Settings {
	s := model.Settings{
		Interval:     DefaultInterval,
		PauseOnFocus: true,
		WordColor:    DefaultWordColor,
		FontColor:    DefaultFontColor,
		ExampleColor: DefaultExampleColor,
		ShowExample:  true,
		SpeechLang:   DefaultSpeechLang,
		SpeechRate:   DefaultSpeechRate,
	}
	if fc.Session.File != nil {
		s.DeckPath = *fc.Session.File
	}
	if fc.Session.Interval != nil {
		s.Interval = time.Duration(*fc.Session.Interval) * time.Second
	}
	if fc.Session.PauseOnFocus != nil {
		s.PauseOnFocus = *fc.Session.PauseOnFocus
	}
	if fc.Appearance.WordColor != nil {
		s.WordColor = *fc.Appearance.WordColor
	}
	if fc.Appearance.FontColor != nil {
		s.FontColor = *fc.Appearance.FontColor
	}
	if fc.Appearance.ExampleColor != nil {
		s.ExampleColor = *fc.Appearance.ExampleColor
	}
	if fc.Appearance.ShowExample != nil {
		s.ShowExample = *fc.Appearance.ShowExample
	}
	if fc.Speech.Command != nil {
		s.SpeechCommand = *fc.Speech.Command
	}
	if fc.Speech.Lang != nil {
		s.SpeechLang = *fc.Speech.Lang
	}
	if fc.Speech.Rate != nil {
		s.SpeechRate = *fc.Speech.Rate
	}
	if fc.Speech.Auto != nil {
		s.SpeechAuto = *fc.Speech.Auto
	}
	return s
}

var colorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|[0-9]{1,3})$`)

// ValidateSettings rejects values the session cannot use.
func ValidateSettings(s model.Settings) error {
	if s.Interval < 0 {
		return fmt.Errorf("interval must be >= 0")
	}
	if s.SpeechRate <= 0 {
		return fmt.Errorf("speech rate must be > 0")
	}
	colors := []struct {
		name  string
		value string
	}{
		{"word-color", s.WordColor},
		{"font-color", s.FontColor},
		{"example-color", s.ExampleColor},
	}
	for _, c := range colors {
		if !colorPattern.MatchString(c.value) {
			return fmt.Errorf("%s must be a hex color (#rgb or #rrggbb) or an ANSI color number, got %q", c.name, c.value)
		}
	}
	return nil
}
