package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/tuivoc/internal/deck"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type memStore struct {
	terms   []string
	loadErr error
	addErr  error
}

func (s *memStore) LearnedTerms(context.Context) ([]string, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]string(nil), s.terms...), nil
}

func (s *memStore) AddLearned(_ context.Context, term string) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.terms = append(s.terms, term)
	return nil
}

type recorder struct {
	views []View
}

func (r *recorder) Render(v View) {
	r.views = append(r.views, v)
}

func (r *recorder) last() View {
	return r.views[len(r.views)-1]
}

const scenarioDeck = "cat\t고양이\napple\t사과\n"

func newTestEngine(t *testing.T, store LearnedStore, interval time.Duration) (*Engine, *fakeClock, *recorder) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(0, 0)}
	rec := &recorder{}
	e := New(store, WithClock(clock.now), WithDisplay(rec), WithInterval(interval))
	return e, clock, rec
}

func TestEngineScenarioAFreshDeck(t *testing.T) {
	e, _, rec := newTestEngine(t, &memStore{}, 5*time.Second)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	active := e.Active()
	if len(active) != 2 || active[0].Term != "cat" || active[1].Term != "apple" {
		t.Fatalf("unexpected active set: %+v", active)
	}
	v := rec.last()
	if v.Kind != ViewCard || v.Position != 0 || v.Record.Term != "cat" || v.Record.Meaning != "고양이" {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.State != Armed {
		t.Fatalf("expected armed scheduler, got %v", v.State)
	}
}

func TestEngineScenarioBLearnedExcluded(t *testing.T) {
	e, _, _ := newTestEngine(t, &memStore{terms: []string{"cat"}}, 5*time.Second)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	active := e.Active()
	if len(active) != 1 || active[0].Term != "apple" {
		t.Fatalf("unexpected active set: %+v", active)
	}
	if e.View().Position != 0 {
		t.Fatalf("expected position 0")
	}
}

func TestEngineScenarioCNoRecords(t *testing.T) {
	e, _, rec := newTestEngine(t, &memStore{}, 5*time.Second)
	if err := e.Load(context.Background(), []byte("# only comments\n\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	v := rec.last()
	if v.Kind != ViewNoRecords {
		t.Fatalf("expected no-records view, got %v", v.Kind)
	}
	if v.State != Idle {
		t.Fatalf("expected idle scheduler, got %v", v.State)
	}
}

func TestEngineAllLearnedOnLoad(t *testing.T) {
	e, _, _ := newTestEngine(t, &memStore{terms: []string{"cat", "apple"}}, 5*time.Second)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if v := e.View(); v.Kind != ViewAllLearned || v.State != Idle {
		t.Fatalf("expected idle all-learned view, got %+v", v)
	}
}

func TestEngineScenarioDLearnLastRecord(t *testing.T) {
	store := &memStore{}
	e, _, rec := newTestEngine(t, store, 5*time.Second)
	if err := e.Load(context.Background(), []byte("cat\t고양이\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := e.MarkLearned(context.Background()); err != nil {
		t.Fatalf("mark learned: %v", err)
	}
	if len(e.Active()) != 0 {
		t.Fatalf("expected empty active set")
	}
	if !e.Learned().Has("cat") {
		t.Fatalf("expected cat in learned set")
	}
	if len(store.terms) != 1 || store.terms[0] != "cat" {
		t.Fatalf("expected write-through to store, got %v", store.terms)
	}
	v := rec.last()
	if v.Kind != ViewAllLearned || v.State != Idle {
		t.Fatalf("expected idle all-learned view, got %+v", v)
	}
	if _, ok := e.Pending(); ok {
		t.Fatalf("expected no pending timer")
	}
}

func TestEngineScenarioEPauseResume(t *testing.T) {
	e, clock, _ := newTestEngine(t, &memStore{}, 5*time.Second)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	armed, ok := e.Pending()
	if !ok {
		t.Fatalf("expected armed timer")
	}

	clock.advance(2 * time.Second)
	e.SetPaused(true)
	if e.View().State != Paused {
		t.Fatalf("expected paused state")
	}

	clock.advance(3 * time.Second)
	if e.Tick(armed.Gen) {
		t.Fatalf("timer must not fire while paused")
	}
	for i := 0; i < 10; i++ {
		e.Tick(armed.Gen + uint64(i))
	}
	if e.View().Position != 0 {
		t.Fatalf("position changed while paused")
	}

	clock.advance(5 * time.Second)
	e.SetPaused(false)
	resumed, ok := e.Pending()
	if !ok {
		t.Fatalf("expected timer after resume")
	}
	if got := resumed.Deadline.Sub(time.Unix(0, 0)); got != 15*time.Second {
		t.Fatalf("expected fresh window ending at 15s, got %v", got)
	}
	if e.Tick(armed.Gen) {
		t.Fatalf("pre-pause timer must stay stale after resume")
	}
	clock.advance(5 * time.Second)
	if !e.Tick(resumed.Gen) {
		t.Fatalf("expected live tick to advance")
	}
	if e.View().Position != 1 {
		t.Fatalf("expected position 1, got %d", e.View().Position)
	}
}

func TestEngineTickAdvancesAndRearms(t *testing.T) {
	e, clock, _ := newTestEngine(t, nil, 2*time.Second)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	first, _ := e.Pending()
	clock.advance(2 * time.Second)
	if !e.Tick(first.Gen) {
		t.Fatalf("expected tick to fire")
	}
	second, ok := e.Pending()
	if !ok || second.Gen == first.Gen {
		t.Fatalf("expected a new timer after tick")
	}
	if !second.Deadline.Equal(clock.now().Add(2 * time.Second)) {
		t.Fatalf("expected deadline one interval from the tick")
	}
	if e.Tick(first.Gen) {
		t.Fatalf("a timer fires at most once")
	}
	clock.advance(2 * time.Second)
	e.Tick(second.Gen)
	if e.View().Position != 0 {
		t.Fatalf("expected wrap to 0, got %d", e.View().Position)
	}
}

func TestEngineManualNavigationResetsClock(t *testing.T) {
	e, clock, _ := newTestEngine(t, nil, 5*time.Second)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	before, _ := e.Pending()
	clock.advance(4 * time.Second)
	e.Next()
	after, ok := e.Pending()
	if !ok || after.Gen == before.Gen {
		t.Fatalf("expected manual navigation to restart the timer")
	}
	if !after.Deadline.Equal(clock.now().Add(5 * time.Second)) {
		t.Fatalf("expected a full window after manual navigation")
	}
	if e.Tick(before.Gen) {
		t.Fatalf("old timer must not compound with manual navigation")
	}
	if e.View().Position != 1 {
		t.Fatalf("expected position 1")
	}
	e.Previous()
	e.Previous()
	if e.View().Position != 1 {
		t.Fatalf("expected backward wrap to 1, got %d", e.View().Position)
	}
}

func TestEngineMarkLearnedKeepsPosition(t *testing.T) {
	e, _, _ := newTestEngine(t, &memStore{}, 5*time.Second)
	raw := []byte("a\t1\nb\t2\nc\t3\n")
	if err := e.Load(context.Background(), raw); err != nil {
		t.Fatalf("load: %v", err)
	}
	e.Next()
	if err := e.MarkLearned(context.Background()); err != nil {
		t.Fatalf("mark learned: %v", err)
	}
	if v := e.View(); v.Position != 1 || v.Record.Term != "c" || v.Total != 2 {
		t.Fatalf("expected to stay at index 1 showing c, got %+v", v)
	}
	if err := e.MarkLearned(context.Background()); err != nil {
		t.Fatalf("mark learned: %v", err)
	}
	if v := e.View(); v.Position != 0 || v.Record.Term != "a" || v.Total != 1 {
		t.Fatalf("expected wrap to index 0 showing a, got %+v", v)
	}
}

func TestEngineMarkLearnedWriteFailureLeavesSession(t *testing.T) {
	store := &memStore{addErr: errors.New("disk full")}
	e, _, _ := newTestEngine(t, store, 5*time.Second)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	before, _ := e.Pending()
	if err := e.MarkLearned(context.Background()); err == nil {
		t.Fatalf("expected write error")
	}
	if len(e.Active()) != 2 || e.Learned().Has("cat") {
		t.Fatalf("session must not change when the write fails")
	}
	if after, _ := e.Pending(); after.Gen != before.Gen {
		t.Fatalf("timer must not be re-armed when nothing changed")
	}
}

func TestEngineMarkLearnedOnEmptyIsNoop(t *testing.T) {
	e, _, _ := newTestEngine(t, &memStore{}, 5*time.Second)
	if err := e.MarkLearned(context.Background()); err != nil {
		t.Fatalf("expected no error before load, got %v", err)
	}
	e.Next()
	e.Previous()
	if e.View().Kind != ViewEmpty {
		t.Fatalf("expected empty view before load")
	}
}

func TestEngineParseErrorKeepsSession(t *testing.T) {
	e, _, _ := newTestEngine(t, nil, 5*time.Second)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	e.Next()
	err := e.Load(context.Background(), []byte{0xff, 0xfe, 0x00, 0xd8})
	var perr *deck.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if v := e.View(); v.Total != 2 || v.Position != 1 {
		t.Fatalf("expected previous session kept, got %+v", v)
	}
}

func TestEngineLearnedLoadFailureFailsOpen(t *testing.T) {
	store := &memStore{terms: []string{"cat"}, loadErr: errors.New("locked")}
	e, _, _ := newTestEngine(t, store, 5*time.Second)
	err := e.Load(context.Background(), []byte(scenarioDeck))
	if !errors.Is(err, ErrLearnedUnavailable) {
		t.Fatalf("expected ErrLearnedUnavailable, got %v", err)
	}
	if len(e.Active()) != 2 {
		t.Fatalf("expected nothing excluded on learned-set failure")
	}
}

func TestEngineReloadPicksUpUnlearn(t *testing.T) {
	store := &memStore{terms: []string{"cat"}}
	e, _, _ := newTestEngine(t, store, 5*time.Second)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	store.terms = nil
	if err := e.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(e.Active()) != 2 {
		t.Fatalf("expected unlearned term back in the active set")
	}
}

func TestEngineIntervalChanges(t *testing.T) {
	e, clock, _ := newTestEngine(t, nil, 5*time.Second)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	e.SetInterval(0)
	if e.View().State != Idle {
		t.Fatalf("expected idle with zero interval")
	}
	clock.advance(time.Second)
	e.SetInterval(3 * time.Second)
	timer, ok := e.Pending()
	if !ok || !timer.Deadline.Equal(clock.now().Add(3*time.Second)) {
		t.Fatalf("expected re-arm with new interval, got %+v", timer)
	}
}

func TestEnginePausedLoadStaysPaused(t *testing.T) {
	e, _, _ := newTestEngine(t, nil, 5*time.Second)
	e.SetPaused(true)
	if err := e.Load(context.Background(), []byte(scenarioDeck)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if e.View().State != Paused {
		t.Fatalf("expected paused state after load, got %v", e.View().State)
	}
	if _, ok := e.Pending(); ok {
		t.Fatalf("expected no timer while paused")
	}
}
