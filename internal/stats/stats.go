// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/typespeed/internal/model"
	"github.com/verte-zerg/typespeed/internal/scorer"
)

const sparkChars = " .:-=+*#%@"

// Summary aggregates a list of results.
type Summary struct {
	Count       int
	AvgWPM      float64
	BestWPM     float64
	AvgAccuracy float64
}

// Summarize computes totals over results.
func Summarize(results []model.Result) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	var totalWPM, totalAcc float64
	best := results[0].WPM
	for _, r := range results {
		totalWPM += r.WPM
		totalAcc += r.Accuracy
		if r.WPM > best {
			best = r.WPM
		}
	}
	count := float64(len(results))
	return Summary{
		Count:       len(results),
		AvgWPM:      totalWPM / count,
		BestWPM:     best,
		AvgAccuracy: totalAcc / count,
	}
}

// Leaderboard aggregates results per owner, ordered by best WPM descending.
// Results without an owner are skipped.
func Leaderboard(results []model.Result) []model.LeaderboardEntry {
	type acc struct {
		games  int
		sumWPM float64
		best   float64
		sumAcc float64
	}
	byUser := make(map[string]*acc)
	for _, r := range results {
		if r.Username == "" {
			continue
		}
		a, ok := byUser[r.Username]
		if !ok {
			a = &acc{best: r.WPM}
			byUser[r.Username] = a
		}
		a.games++
		a.sumWPM += r.WPM
		a.sumAcc += r.Accuracy
		if r.WPM > a.best {
			a.best = r.WPM
		}
	}

	entries := make([]model.LeaderboardEntry, 0, len(byUser))
	for name, a := range byUser {
		n := float64(a.games)
		entries = append(entries, model.LeaderboardEntry{
			Username:        name,
			TotalGames:      a.games,
			AverageWPM:      scorer.Round1(a.sumWPM / n),
			BestWPM:         scorer.Round1(a.best),
			AverageAccuracy: scorer.Round1(a.sumAcc / n),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BestWPM == entries[j].BestWPM {
			return entries[i].Username < entries[j].Username
		}
		return entries[i].BestWPM > entries[j].BestWPM
	})
	return entries
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

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

// WPMTrend returns WPM values oldest first, smoothed over window.
// results are expected newest first, as stores return them.
func WPMTrend(results []model.Result, window int) []float64 {
	values := make([]float64, len(results))
	for i, r := range results {
		values[len(results)-1-i] = r.WPM
	}
	return MovingAverage(values, window)
}

// RenderSummary prints a summary block for results.
func RenderSummary(w io.Writer, results []model.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	s := Summarize(results)
	lines := []string{
		"Summary",
		fmt.Sprintf("Tests: %d", s.Count),
		fmt.Sprintf("Avg WPM: %.2f", s.AvgWPM),
		fmt.Sprintf("Best WPM: %.2f", s.BestWPM),
		fmt.Sprintf("Avg Accuracy: %.2f%%", s.AvgAccuracy),
	}
	if len(results) > 1 {
		lines = append(lines, "Trend: "+Sparkline(WPMTrend(results, 3)))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderHistory prints one row per result, in the given order.
func RenderHistory(w io.Writer, results []model.Result) error {
	if len(results) == 0 {
		return nil
	}
	withUser := false
	for _, r := range results {
		if r.Username != "" {
			withUser = true
			break
		}
	}
	headers := []string{"Date", "WPM", "Accuracy"}
	rightAlign := map[int]bool{1: true, 2: true}
	if withUser {
		headers = append(headers, "User")
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := []string{
			r.Timestamp.Format(model.TimestampLayout),
			fmt.Sprintf("%.1f", r.WPM),
			fmt.Sprintf("%.1f%%", r.Accuracy),
		}
		if withUser {
			row = append(row, r.Username)
		}
		rows = append(rows, row)
	}
	return writeLines(w, formatTable(headers, rows, rightAlign))
}

// RenderLeaderboard prints leaderboard entries as a ranked table.
func RenderLeaderboard(w io.Writer, entries []model.LeaderboardEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "Leaderboard is empty.")
		return err
	}
	headers := []string{"#", "User", "Games", "Avg WPM", "Best WPM", "Avg Accuracy"}
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			e.Username,
			fmt.Sprintf("%d", e.TotalGames),
			fmt.Sprintf("%.1f", e.AverageWPM),
			fmt.Sprintf("%.1f", e.BestWPM),
			fmt.Sprintf("%.1f%%", e.AverageAccuracy),
		})
	}
	rightAlign := map[int]bool{0: true, 2: true, 3: true, 4: true, 5: true}
	return writeLines(w, formatTable(headers, rows, rightAlign))
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
