package models

import "time"

type ScoreBreakdown struct {
	ModuleXP            int `json:"module_xp"`
	ModuleHax           int `json:"module_hax"`
	TotalXP             int `json:"total_xp"`
	TotalHax            int `json:"total_hax"`
	StreakScore         int `json:"streak_score"`
	QuestScore          int `json:"quest_score"`
	TaskCompletionScore int `json:"task_completion_score"`
	CompositeScore      int `json:"composite_score"`
}

type LeaderboardEntry struct {
	Rank                int            `json:"rank"`
	UserID              string         `json:"user_id"`
	Score               ScoreBreakdown `json:"score"`
	StreakDays          int            `json:"streak_days"`
	DailyQuestCompleted bool           `json:"daily_quest_completed"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

type LeaderboardResponse struct {
	Season      string              `json:"season"`
	WindowStart *time.Time          `json:"window_start"`
	Leaderboard []*LeaderboardEntry `json:"leaderboard"`
}
