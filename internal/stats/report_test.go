package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/tuivoc/internal/model"
	"github.com/verte-zerg/tuivoc/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tuivoc.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		id, err := st.StartSession(ctx, "words.tsv", start)
		if err != nil {
			t.Fatalf("start session: %v", err)
		}
		if err := st.FinishSession(ctx, model.StudySession{
			ID:      id,
			Deck:    "words.tsv",
			EndedAt: start.Add(30 * time.Second),
			Shown:   5,
			Learned: 1,
		}); err != nil {
			t.Fatalf("finish session: %v", err)
		}
		ids = append(ids, id)
	}
	for _, term := range []string{"cat", "dog"} {
		if err := st.MarkLearned(ctx, "words.tsv", term); err != nil {
			t.Fatalf("mark learned: %v", err)
		}
	}
	if err := st.RecordView(ctx, "words.tsv", "owl", time.Unix(0, 0)); err != nil {
		t.Fatalf("record view: %v", err)
	}

	report, err := BuildReport(ctx, st, model.StatsConfig{Deck: "words.tsv", Last: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(report.Sessions))
	}
	if report.Sessions[0].ID != ids[1] || report.Sessions[1].ID != ids[2] {
		t.Fatalf("unexpected session ids: %+v", report.Sessions)
	}
	if report.LearnedTotal != 2 {
		t.Fatalf("expected 2 learned, got %d", report.LearnedTotal)
	}
	if len(report.TopViewed) != 1 || report.TopViewed[0].Term != "owl" {
		t.Fatalf("unexpected top viewed: %+v", report.TopViewed)
	}
}
