package tui

import (
	"context"

	"github.com/verte-zerg/tuivoc/internal/store"
)

// learnedStore adapts the SQLite store to session.LearnedStore, tagging each
// learned term with the deck it was learned from.
type learnedStore struct {
	st   *store.Store
	deck func() string
}

func (l learnedStore) LearnedTerms(ctx context.Context) ([]string, error) {
	return l.st.LearnedTerms(ctx)
}

func (l learnedStore) AddLearned(ctx context.Context, term string) error {
	return l.st.MarkLearned(ctx, l.deck(), term)
}
