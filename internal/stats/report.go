// Package stats contains study statistics and reporting.
package stats

import (
	"context"

	"github.com/verte-zerg/tuivoc/internal/model"
	"github.com/verte-zerg/tuivoc/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions      []model.StudySession
	LearnedPerDay []model.DayCount
	TopViewed     []model.TermViews
	LearnedTotal  int
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	perDay, err := st.LearnedPerDay(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	top, err := st.TopViewed(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	total := 0
	for _, d := range perDay {
		total += d.Count
	}
	return Report{
		Sessions:      sessions,
		LearnedPerDay: perDay,
		TopViewed:     top,
		LearnedTotal:  total,
	}, nil
}
