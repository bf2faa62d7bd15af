package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/tuivoc/internal/deck"
	"github.com/verte-zerg/tuivoc/internal/model"
)

// ErrLearnedUnavailable is returned alongside a successful load when the
// learned set could not be read; the load proceeds with an empty set.
var ErrLearnedUnavailable = errors.New("learned set unavailable")

// LearnedStore persists the learned set.
type LearnedStore interface {
	LearnedTerms(ctx context.Context) ([]string, error)
	AddLearned(ctx context.Context, term string) error
}

// Display receives the engine's view after every state-affecting transition.
type Display interface {
	Render(View)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(View)

// Render calls f(v).
func (f DisplayFunc) Render(v View) {
	f(v)
}

// ViewKind selects what the display shows.
type ViewKind int

const (
	// ViewEmpty is shown before any deck is loaded.
	ViewEmpty ViewKind = iota
	// ViewCard shows the record under the cursor.
	ViewCard
	// ViewNoRecords means the deck parsed to nothing.
	ViewNoRecords
	// ViewAllLearned means every parsed record is learned.
	ViewAllLearned
)

// View is a snapshot of what should be on screen.
type View struct {
	Kind     ViewKind
	Record   model.Record
	Position int
	Total    int
	Records  int
	State    State
	Paused   bool
	Interval time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithDisplay sets the display collaborator.
func WithDisplay(d Display) Option {
	return func(e *Engine) {
		e.display = d
	}
}

// WithInterval sets the initial advance interval.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// Engine owns the active set, the cursor and the scheduler for one loaded deck.
// It is not safe for concurrent use; callers serialize all calls on one event
// loop, timer ticks included.
type Engine struct {
	store    LearnedStore
	display  Display
	now      func() time.Time
	interval time.Duration

	loaded  bool
	records []model.Record
	learned LearnedSet
	active  []model.Record
	cursor  Cursor
	sched   Scheduler
}

// New constructs an engine. store may be nil, in which case nothing is excluded
// and learn actions are not persisted.
func New(store LearnedStore, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		now:     time.Now,
		learned: NewLearnedSet(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load parses raw deck content and starts a new session over it. On a parse
// error the current session is left untouched.
func (e *Engine) Load(ctx context.Context, raw []byte) error {
	records, err := deck.Parse(raw)
	if err != nil {
		return err
	}
	return e.LoadRecords(ctx, records)
}

// LoadRecords starts a new session over already parsed records. A learned-set
// read failure is returned wrapped in ErrLearnedUnavailable, but the session is
// still loaded with nothing excluded.
func (e *Engine) LoadRecords(ctx context.Context, records []model.Record) error {
	learned, lerr := e.loadLearned(ctx)
	e.records = records
	e.learned = learned
	e.active = BuildActiveSet(records, learned)
	e.loaded = true
	e.cursor.ResetTo(0, len(e.active))
	e.rearm()
	e.render()
	return lerr
}

// Reload re-reads the learned set and rebuilds the session from the records of
// the last load.
func (e *Engine) Reload(ctx context.Context) error {
	if !e.loaded {
		return nil
	}
	return e.LoadRecords(ctx, e.records)
}

// Next shows the following record and restarts the advance window.
func (e *Engine) Next() {
	if len(e.active) == 0 {
		return
	}
	e.cursor.Next()
	e.render()
	e.rearm()
}

// Previous shows the preceding record and restarts the advance window.
func (e *Engine) Previous() {
	if len(e.active) == 0 {
		return
	}
	e.cursor.Previous()
	e.render()
	e.rearm()
}

// MarkLearned persists the current term as learned and drops it from the
// active set. The store write comes first; if it fails nothing changes.
func (e *Engine) MarkLearned(ctx context.Context) error {
	if len(e.active) == 0 {
		return nil
	}
	pos := e.cursor.Position()
	term := e.active[pos].Term
	if e.store != nil {
		if err := e.store.AddLearned(ctx, term); err != nil {
			return fmt.Errorf("failed to save learned term %q: %w", term, err)
		}
	}
	active, learned, ok := MarkLearned(e.active, pos, e.learned)
	if !ok {
		return nil
	}
	e.active = active
	e.learned = learned
	e.cursor.ResetTo(pos, len(active))
	e.rearm()
	e.render()
	return nil
}

// SetPaused asserts or clears the pause signal.
func (e *Engine) SetPaused(paused bool) {
	if e.sched.Paused() == paused {
		return
	}
	e.sched.SetPaused(e.now(), paused)
	e.render()
}

// SetInterval changes the advance interval and re-arms.
func (e *Engine) SetInterval(d time.Duration) {
	e.interval = d
	e.rearm()
	e.render()
}

// Rearm cancels the pending timer and starts a fresh window with the current
// interval.
func (e *Engine) Rearm() {
	e.rearm()
	e.render()
}

// Tick handles a timer firing. Stale ticks are ignored and report false.
func (e *Engine) Tick(gen uint64) bool {
	if !e.sched.Fire(gen) {
		return false
	}
	e.cursor.Next()
	e.render()
	e.rearm()
	return true
}

// Pending returns the timer the caller should schedule, if any.
func (e *Engine) Pending() (Timer, bool) {
	return e.sched.Pending()
}

// Interval returns the configured advance interval.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Current returns the record under the cursor.
func (e *Engine) Current() (model.Record, bool) {
	if len(e.active) == 0 {
		return model.Record{}, false
	}
	return e.active[e.cursor.Position()], true
}

// Active returns a copy of the active set.
func (e *Engine) Active() []model.Record {
	out := make([]model.Record, len(e.active))
	copy(out, e.active)
	return out
}

// Learned returns a copy of the learned set as of the last load or learn action.
func (e *Engine) Learned() LearnedSet {
	return e.learned.Clone()
}

// View returns what the display should currently show.
func (e *Engine) View() View {
	v := View{
		Total:    len(e.active),
		Records:  len(e.records),
		State:    e.sched.State(),
		Paused:   e.sched.Paused(),
		Interval: e.interval,
	}
	switch {
	case !e.loaded:
		v.Kind = ViewEmpty
	case len(e.records) == 0:
		v.Kind = ViewNoRecords
	case len(e.active) == 0:
		v.Kind = ViewAllLearned
	default:
		v.Kind = ViewCard
		v.Position = e.cursor.Position()
		v.Record = e.active[v.Position]
	}
	return v
}

func (e *Engine) loadLearned(ctx context.Context) (LearnedSet, error) {
	if e.store == nil {
		return NewLearnedSet(), nil
	}
	terms, err := e.store.LearnedTerms(ctx)
	if err != nil {
		return NewLearnedSet(), fmt.Errorf("%w: %v", ErrLearnedUnavailable, err)
	}
	return NewLearnedSet(terms...), nil
}

func (e *Engine) rearm() {
	e.sched.Rearm(e.now(), len(e.active), e.interval)
}

func (e *Engine) render() {
	if e.display != nil {
		e.display.Render(e.View())
	}
}
