package scoring

import (
	"sort"
	"time"

	"haxquest/internal/models"
)

type scored struct {
	snapshot *models.ProgressSnapshot
	score    models.ScoreBreakdown
}

// Rank scores every snapshot inside the season window and returns the top
// limit entries. Order is composite desc, hax desc, updated_at desc, then
// user id asc; entries sharing the first three keys share a dense rank.
// A limit <= 0 returns everything.
func Rank(snapshots []*models.ProgressSnapshot, catalog *Catalog, season Season, now time.Time, limit int) []*models.LeaderboardEntry {
	start := WindowStart(season, now)

	items := make([]scored, 0, len(snapshots))
	for _, s := range snapshots {
		if s == nil {
			continue
		}
		if start != nil && s.UpdatedAt.Before(*start) {
			continue
		}
		items = append(items, scored{s, Score(s, catalog)})
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.score.CompositeScore != b.score.CompositeScore {
			return a.score.CompositeScore > b.score.CompositeScore
		}
		if a.score.TotalHax != b.score.TotalHax {
			return a.score.TotalHax > b.score.TotalHax
		}
		if !a.snapshot.UpdatedAt.Equal(b.snapshot.UpdatedAt) {
			return a.snapshot.UpdatedAt.After(b.snapshot.UpdatedAt)
		}
		return a.snapshot.UserID < b.snapshot.UserID
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	out := make([]*models.LeaderboardEntry, 0, len(items))
	rank := 0
	for i, it := range items {
		if i == 0 || !sameStanding(items[i-1], it) {
			rank++
		}
		out = append(out, &models.LeaderboardEntry{
			Rank:                rank,
			UserID:              it.snapshot.UserID,
			Score:               it.score,
			StreakDays:          it.snapshot.StreakDays,
			DailyQuestCompleted: it.snapshot.DailyQuest.Completed,
			UpdatedAt:           it.snapshot.UpdatedAt,
		})
	}
	return out
}

func sameStanding(a, b scored) bool {
	return a.score.CompositeScore == b.score.CompositeScore &&
		a.score.TotalHax == b.score.TotalHax &&
		a.snapshot.UpdatedAt.Equal(b.snapshot.UpdatedAt)
}
