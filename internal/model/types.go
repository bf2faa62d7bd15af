// Package model defines shared data structures.
package model

import "time"

// Record is one term/meaning/example triple parsed from a deck file.
type Record struct {
	Term    string
	Meaning string
	// Example is optional; an empty string means the record has none.
	Example string
}

// HasExample reports whether the record carries an example sentence.
func (r Record) HasExample() bool {
	return r.Example != ""
}

// Settings holds the resolved session, appearance and speech settings.
type Settings struct {
	DeckPath     string
	Interval     time.Duration
	PauseOnFocus bool

	WordColor    string
	FontColor    string
	ExampleColor string
	ShowExample  bool

	SpeechCommand string
	SpeechLang    string
	SpeechRate    float64
	SpeechAuto    bool
}

// LearnedTerm is a persisted learned-set entry.
type LearnedTerm struct {
	Term      string
	Deck      string
	LearnedAt time.Time
}

// StudySession captures one run of the overlay.
type StudySession struct {
	ID        string
	Deck      string
	StartedAt time.Time
	EndedAt   time.Time
	Shown     int
	Learned   int
}

// DayCount is a per-day counter used by stats.
type DayCount struct {
	Day   time.Time
	Count int
}

// TermViews aggregates how often a term has been displayed.
type TermViews struct {
	Term         string
	Deck         string
	Views        int
	LastViewedAt time.Time
}

// StatsConfig defines filters for stats output.
type StatsConfig struct {
	Deck  string
	Since *time.Time
	Last  int
	Top   int
}
