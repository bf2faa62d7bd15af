// Package speech speaks terms through an external text-to-speech program.
package speech

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// ErrNoEngine is returned when no speech program is configured or installed.
var ErrNoEngine = errors.New("no text-to-speech program found (install espeak-ng or set speech.command)")

// candidates are probed in order when no command is configured.
var candidates = []string{"espeak-ng", "espeak", "spd-say", "say"}

var lookPath = exec.LookPath

const baseWPM = 175

type scriptLang struct {
	table *unicode.RangeTable
	lang  string
}

// Order matters: Japanese text mixes kana with Han, so kana is checked first.
var scripts = []scriptLang{
	{unicode.Hangul, "ko-KR"},
	{unicode.Hiragana, "ja-JP"},
	{unicode.Katakana, "ja-JP"},
	{unicode.Han, "zh"},
	{unicode.Cyrillic, "ru-RU"},
	{unicode.Hebrew, "he-IL"},
	{unicode.Arabic, "ar-SA"},
	{unicode.Thai, "th-TH"},
	{unicode.Devanagari, "hi-IN"},
}

// DetectLang guesses a BCP 47 tag from the writing system of text. Latin and
// other scripts return fallback.
func DetectLang(text, fallback string) string {
	for _, sc := range scripts {
		for _, r := range text {
			if unicode.Is(sc.table, r) {
				return sc.lang
			}
		}
	}
	return fallback
}

// Speaker builds speech commands.
type Speaker struct {
	// Command is the program and leading arguments; empty means auto-detect.
	Command string
	// Lang is the fallback language for scripts DetectLang cannot tell apart.
	Lang string
	// Rate scales the default speaking rate; 1 is normal.
	Rate float64
}

// Cmd returns the process that speaks text. The caller starts and waits on it.
func (s Speaker) Cmd(text string) (*exec.Cmd, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("nothing to speak")
	}
	parts, err := s.resolve()
	if err != nil {
		return nil, err
	}
	lang := DetectLang(text, s.Lang)
	args := append(parts[1:], Args(parts[0], lang, s.Rate, text)...)
	return exec.Command(parts[0], args...), nil
}

func (s Speaker) resolve() ([]string, error) {
	if parts := strings.Fields(s.Command); len(parts) > 0 {
		return parts, nil
	}
	for _, name := range candidates {
		if path, err := lookPath(name); err == nil {
			return []string{path}, nil
		}
	}
	return nil, ErrNoEngine
}

// Args returns engine-specific arguments for speaking text in lang at rate.
// Unknown programs receive the text as their only argument.
func Args(program, lang string, rate float64, text string) []string {
	if rate <= 0 {
		rate = 1
	}
	wpm := strconv.Itoa(int(baseWPM * rate))
	switch filepath.Base(program) {
	case "espeak-ng", "espeak":
		return []string{"-v", espeakVoice(lang), "-s", wpm, "--", text}
	case "spd-say":
		return []string{"-w", "-l", primaryTag(lang), "-r", strconv.Itoa(spdRate(rate)), "--", text}
	case "say":
		return []string{"-r", wpm, "--", text}
	default:
		return []string{text}
	}
}

func primaryTag(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		return lang[:i]
	}
	return lang
}

func espeakVoice(lang string) string {
	lang = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(lang), "_", "-"))
	switch {
	case lang == "":
		return "en-us"
	case strings.HasPrefix(lang, "zh"):
		return "cmn"
	case strings.HasPrefix(lang, "en"):
		return lang
	default:
		return primaryTag(lang)
	}
}

// spdRate maps a rate multiplier onto speech-dispatcher's -100..100 scale.
func spdRate(rate float64) int {
	v := int((rate - 1) * 100)
	if v < -100 {
		return -100
	}
	if v > 100 {
		return 100
	}
	return v
}
