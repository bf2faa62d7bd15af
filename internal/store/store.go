// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuivoc/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

const (
	metaRevision = "revision"
	metaLastFile = "last_file"

	// Fixed-width UTC timestamps sort lexically in SQL.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store wraps SQLite access for learned words and study history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps per-connection pragmas in effect for every query.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS learned_words (
			term TEXT PRIMARY KEY,
			deck TEXT NOT NULL,
			learned_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS study_sessions (
			id TEXT PRIMARY KEY,
			deck TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			shown INTEGER NOT NULL,
			learned INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS term_views (
			term TEXT NOT NULL,
			deck TEXT NOT NULL,
			views INTEGER NOT NULL,
			last_viewed_at TEXT NOT NULL,
			PRIMARY KEY (term, deck)
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_learned_words_learned_at ON learned_words(learned_at);`,
		`CREATE INDEX IF NOT EXISTS idx_study_sessions_started_at ON study_sessions(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LearnedTerms returns every learned term.
func (s *Store) LearnedTerms(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT term FROM learned_words ORDER BY term`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return terms, nil
}

// ListLearned returns learned entries, newest first, optionally filtered by a
// substring of the term.
func (s *Store) ListLearned(ctx context.Context, filter string) ([]model.LearnedTerm, error) {
	query := `SELECT term, deck, learned_at FROM learned_words`
	args := []any{}
	if filter = strings.TrimSpace(filter); filter != "" {
		query += ` WHERE instr(term, ?) > 0`
		args = append(args, filter)
	}
	query += ` ORDER BY learned_at DESC, term ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.LearnedTerm
	for rows.Next() {
		var entry model.LearnedTerm
		var learnedAt string
		if err := rows.Scan(&entry.Term, &entry.Deck, &learnedAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, learnedAt)
		if err != nil {
			return nil, err
		}
		entry.LearnedAt = parsed
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkLearned records term as learned from deck. Re-adding a term keeps the
// original timestamp.
func (s *Store) MarkLearned(ctx context.Context, deck, term string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO learned_words (term, deck, learned_at) VALUES (?, ?, ?)`,
			term, deck, time.Now().UTC().Format(timeLayout))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}
		return bumpRevision(ctx, tx)
	})
}

// RemoveLearned unlearns the given terms and returns how many were removed.
func (s *Store) RemoveLearned(ctx context.Context, terms ...string) (int, error) {
	if len(terms) == 0 {
		return 0, nil
	}
	removed := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, term := range terms {
			res, err := tx.ExecContext(ctx, `DELETE FROM learned_words WHERE term = ?`, term)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += int(n)
		}
		if removed == 0 {
			return nil
		}
		return bumpRevision(ctx, tx)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// MergeLearned adds terms to the learned set and returns how many were new.
func (s *Store) MergeLearned(ctx context.Context, deck string, terms []string) (int, error) {
	now := time.Now().UTC().Format(timeLayout)
	added := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, term := range terms {
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO learned_words (term, deck, learned_at) VALUES (?, ?, ?)`,
				term, deck, now)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			added += int(n)
		}
		if added == 0 {
			return nil
		}
		return bumpRevision(ctx, tx)
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// ReplaceLearned swaps the whole learned set for terms.
func (s *Store) ReplaceLearned(ctx context.Context, deck string, terms []string) error {
	now := time.Now().UTC().Format(timeLayout)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM learned_words`); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO learned_words (term, deck, learned_at) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, term := range terms {
			if _, err := stmt.ExecContext(ctx, term, deck, now); err != nil {
				return err
			}
		}
		return bumpRevision(ctx, tx)
	})
}

// Revision returns a counter bumped on every learned-set change. Processes
// sharing the database poll it to notice changes made elsewhere.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	value, err := s.getMeta(ctx, s.db, metaRevision)
	if err != nil || value == "" {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

// LastFile returns the most recently opened deck path.
func (s *Store) LastFile(ctx context.Context) (string, error) {
	return s.getMeta(ctx, s.db, metaLastFile)
}

// SetLastFile records the most recently opened deck path.
func (s *Store) SetLastFile(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaLastFile, path)
	return err
}

// StartSession creates a study session row and returns its id.
func (s *Store) StartSession(ctx context.Context, deck string, startedAt time.Time) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	ts := startedAt.UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO study_sessions (id, deck, started_at, ended_at, shown, learned) VALUES (?, ?, ?, ?, 0, 0)`,
		id, deck, ts, ts)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishSession stores the final counters of a study session.
func (s *Store) FinishSession(ctx context.Context, sess model.StudySession) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE study_sessions SET deck = ?, ended_at = ?, shown = ?, learned = ? WHERE id = ?`,
		sess.Deck, sess.EndedAt.UTC().Format(timeLayout), sess.Shown, sess.Learned, sess.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("study session %s not found", sess.ID)
	}
	return nil
}

// RecordView bumps the view counter of a term.
func (s *Store) RecordView(ctx context.Context, deck, term string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO term_views (term, deck, views, last_viewed_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(term, deck) DO UPDATE SET views = views + 1, last_viewed_at = excluded.last_viewed_at`,
		term, deck, at.UTC().Format(timeLayout))
	return err
}

// ListSessions returns study sessions filtered by stats config, oldest first.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.StudySession, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Deck != "" {
		clauses = append(clauses, "deck = ?")
		args = append(args, cfg.Deck)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, cfg.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT id, deck, started_at, ended_at, shown, learned
		FROM study_sessions
		WHERE %s
		ORDER BY started_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.StudySession
	for rows.Next() {
		var sess model.StudySession
		var startedAt, endedAt string
		if err := rows.Scan(&sess.ID, &sess.Deck, &startedAt, &endedAt, &sess.Shown, &sess.Learned); err != nil {
			return nil, err
		}
		if sess.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, err
		}
		if sess.EndedAt, err = time.Parse(timeLayout, endedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// LearnedPerDay counts learned terms per local calendar day.
func (s *Store) LearnedPerDay(ctx context.Context, cfg model.StatsConfig) ([]model.DayCount, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Deck != "" {
		clauses = append(clauses, "deck = ?")
		args = append(args, cfg.Deck)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "learned_at >= ?")
		args = append(args, cfg.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT learned_at FROM learned_words WHERE %s ORDER BY learned_at ASC`,
		strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.DayCount
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		ts, err := time.Parse(timeLayout, raw)
		if err != nil {
			return nil, err
		}
		local := ts.Local()
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
		if n := len(result); n > 0 && result[n-1].Day.Equal(day) {
			result[n-1].Count++
			continue
		}
		result = append(result, model.DayCount{Day: day, Count: 1})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// TopViewed returns the most displayed terms that are not learned yet.
func (s *Store) TopViewed(ctx context.Context, cfg model.StatsConfig) ([]model.TermViews, error) {
	limit := cfg.Top
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT v.term, v.deck, v.views, v.last_viewed_at
		FROM term_views v
		LEFT JOIN learned_words l ON l.term = v.term
		WHERE l.term IS NULL AND (? = '' OR v.deck = ?)
		ORDER BY v.views DESC, v.term ASC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, cfg.Deck, cfg.Deck, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.TermViews
	for rows.Next() {
		var tv model.TermViews
		var lastViewed string
		if err := rows.Scan(&tv.Term, &tv.Deck, &tv.Views, &lastViewed); err != nil {
			return nil, err
		}
		if tv.LastViewedAt, err = time.Parse(timeLayout, lastViewed); err != nil {
			return nil, err
		}
		result = append(result, tv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getMeta(ctx context.Context, q queryer, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func bumpRevision(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, '1')
		 ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)`,
		metaRevision)
	return err
}
