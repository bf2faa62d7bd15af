package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/verte-zerg/tuivoc/internal/model"
)

const (
	sparkChars          = " .:-=+*#%@"
	terminalWidthBackup = 80
	maxTermWidth        = 32
)

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// DailySeries expands sparse per-day counts into one value per calendar day
// from the first day through last, filling gaps with zero.
func DailySeries(days []model.DayCount, last time.Time) []float64 {
	if len(days) == 0 {
		return nil
	}
	first := days[0].Day
	end := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, first.Location())
	if end.Before(days[len(days)-1].Day) {
		end = days[len(days)-1].Day
	}
	counts := make(map[string]int, len(days))
	for _, d := range days {
		counts[d.Day.Format(time.DateOnly)] += d.Count
	}
	var series []float64
	for day := first; !day.After(end); day = day.AddDate(0, 0, 1) {
		series = append(series, float64(counts[day.Format(time.DateOnly)]))
	}
	return series
}

// RenderSummary prints totals for the report.
func RenderSummary(w io.Writer, r Report) error {
	shown, learned := 0, 0
	var studied time.Duration
	for _, s := range r.Sessions {
		shown += s.Shown
		learned += s.Learned
		studied += s.EndedAt.Sub(s.StartedAt)
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", len(r.Sessions)),
		fmt.Sprintf("Time studied: %s", studied.Round(time.Second)),
		fmt.Sprintf("Cards shown: %d", shown),
		fmt.Sprintf("Learned in sessions: %d", learned),
		fmt.Sprintf("Learned words: %d", r.LearnedTotal),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderLearnedCurve prints a per-day sparkline of learned words, keeping the
// most recent days that fit in width.
func RenderLearnedCurve(w io.Writer, days []model.DayCount, now time.Time, width int) error {
	series := DailySeries(days, now)
	if len(series) == 0 {
		return nil
	}
	const label = "Learned/day "
	if avail := width - len(label) - 2; avail > 0 && len(series) > avail {
		series = series[len(series)-avail:]
	}
	_, err := fmt.Fprintf(w, "%s[%s]\n\n", label, Sparkline(series))
	return err
}

// RenderSessions prints the study session table.
func RenderSessions(w io.Writer, sessions []model.StudySession, width int) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Sessions"); err != nil {
		return err
	}
	headers := []string{"Started", "Duration", "Shown", "Learned", "Deck"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.EndedAt.Sub(s.StartedAt).Round(time.Second).String(),
			fmt.Sprintf("%d", s.Shown),
			fmt.Sprintf("%d", s.Learned),
			truncate(s.Deck, width/3),
		})
	}
	return writeTable(w, headers, rows, map[int]bool{1: true, 2: true, 3: true})
}

// RenderTopViewed prints the most displayed terms still under review.
func RenderTopViewed(w io.Writer, top []model.TermViews) error {
	if len(top) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Most viewed (not learned)"); err != nil {
		return err
	}
	headers := []string{"Term", "Views", "Last seen"}
	rows := make([][]string, 0, len(top))
	for _, tv := range top {
		rows = append(rows, []string{
			truncate(tv.Term, maxTermWidth),
			fmt.Sprintf("%d", tv.Views),
			tv.LastViewedAt.Local().Format("2006-01-02"),
		})
	}
	return writeTable(w, headers, rows, map[int]bool{1: true})
}

// RenderReport prints every section of the report.
func RenderReport(w io.Writer, r Report, now time.Time) error {
	width := terminalWidth()
	if err := RenderSummary(w, r); err != nil {
		return err
	}
	if err := RenderLearnedCurve(w, r.LearnedPerDay, now, width); err != nil {
		return err
	}
	if err := RenderSessions(w, r.Sessions, width); err != nil {
		return err
	}
	return RenderTopViewed(w, r.TopViewed)
}

func writeTable(w io.Writer, headers []string, rows [][]string, rightAlign map[int]bool) error {
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// RenderLearned prints learned entries as a table.
func RenderLearned(w io.Writer, terms []model.LearnedTerm) error {
	if len(terms) == 0 {
		_, err := fmt.Fprintln(w, "No learned words.")
		return err
	}
	headers := []string{"Term", "Deck", "Learned"}
	rows := make([][]string, 0, len(terms))
	for _, lt := range terms {
		rows = append(rows, []string{
			truncate(lt.Term, maxTermWidth),
			filepath.Base(lt.Deck),
			lt.LearnedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return writeTable(w, headers, rows, nil)
}
