package scoring

import "haxquest/internal/models"

const (
	StreakPointsPerDay  = 25
	QuestCompletedBonus = 120
	PointsPerTask       = 50
	HaxWeight           = 30
)

// Score derives the composite breakdown of a snapshot. Task ids missing from
// the catalog still count as completions but carry no module reward.
func Score(p *models.ProgressSnapshot, catalog *Catalog) models.ScoreBreakdown {
	var b models.ScoreBreakdown
	seen := make(map[string]struct{}, len(p.CompletedTaskIDs))
	for _, id := range p.CompletedTaskIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if t, ok := catalog.Lookup(id); ok {
			b.ModuleXP += t.XP
			b.ModuleHax += t.Hax
		}
	}

	b.TotalXP = b.ModuleXP + p.BonusXP
	b.TotalHax = b.ModuleHax + p.BonusHax
	b.StreakScore = p.StreakDays * StreakPointsPerDay
	if p.DailyQuest.Completed {
		b.QuestScore = QuestCompletedBonus
	}
	b.TaskCompletionScore = len(seen) * PointsPerTask
	b.CompositeScore = b.TotalXP + b.TotalHax*HaxWeight + b.StreakScore + b.QuestScore + b.TaskCompletionScore
	return b
}
