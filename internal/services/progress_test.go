package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"haxquest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_GetCreatesDefault(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceProgress](t, env)
	ctx := context.Background()

	p, err := service.Get(ctx, "user_new")
	require.NoError(t, err)
	assert.Equal(t, "user_new", p.UserID)
	assert.Empty(t, p.CompletedTaskIDs)
	assert.Zero(t, p.StreakDays)
	assert.Equal(t, "2026-10-15", p.DailyQuest.AssignedDate)
	assert.NotEmpty(t, p.DailyQuest.TaskID)
	assert.False(t, p.DailyQuest.Completed)

	// a second user sees the same rotation
	other, err := service.Get(ctx, "user_other")
	require.NoError(t, err)
	assert.Equal(t, p.DailyQuest, other.DailyQuest)

	// persisted
	again, err := service.Get(ctx, "user_new")
	require.NoError(t, err)
	assert.True(t, p.UpdatedAt.Equal(again.UpdatedAt))
}

func TestProgress_GetRejectsMalformedUserID(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceProgress](t, env)

	for _, id := range []string{"", "ab", "has space", "semi;colon", fmt.Sprintf("%0130d", 1)} {
		_, err := service.Get(context.Background(), id)
		require.ErrorIs(t, err, ErrInvalidUserID, id)
	}
}

func TestProgress_UpsertNeverRegresses(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceProgress](t, env)
	ctx := context.Background()

	_, err := service.Upsert(ctx, "user_1", &models.ProgressSnapshot{
		CompletedTaskIDs: []string{"t1"},
		StreakDays:       5,
		BonusXP:          3,
	})
	require.NoError(t, err)

	merged, err := service.Upsert(ctx, "user_1", &models.ProgressSnapshot{
		CompletedTaskIDs: []string{"t2"},
		StreakDays:       2,
		BonusXP:          10,
		BonusHax:         4,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, merged.CompletedTaskIDs)
	assert.Equal(t, 5, merged.StreakDays)
	assert.Equal(t, 10, merged.BonusXP)
	assert.Equal(t, 4, merged.BonusHax)

	// a stale client copy changes nothing
	stale, err := service.Upsert(ctx, "user_1", &models.ProgressSnapshot{CompletedTaskIDs: []string{}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, stale.CompletedTaskIDs)
	assert.Equal(t, 5, stale.StreakDays)
	assert.Equal(t, 10, stale.BonusXP)
}

func TestProgress_UpsertUpdatedAtMonotonic(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceProgress](t, env)
	future := testNow.Add(time.Hour)
	seedProgress(t, env, &models.ProgressSnapshot{UserID: "user_1", UpdatedAt: future})

	p, err := service.Upsert(context.Background(), "user_1", &models.ProgressSnapshot{BonusXP: 1})
	require.NoError(t, err)
	assert.True(t, p.UpdatedAt.Equal(future))

	env.clock.Advance(2 * time.Hour)
	p, err = service.Upsert(context.Background(), "user_1", &models.ProgressSnapshot{BonusXP: 2})
	require.NoError(t, err)
	assert.True(t, p.UpdatedAt.Equal(env.clock.Now()))
}

func TestProgress_UpsertValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceProgress](t, env)
	ctx := context.Background()

	_, err := service.Upsert(ctx, "user_1", &models.ProgressSnapshot{CompletedTaskIDs: []string{"nope"}})
	require.ErrorIs(t, err, ErrUnknownTask)

	_, err = service.Upsert(ctx, "user_1", &models.ProgressSnapshot{BonusHax: -1})
	require.ErrorIs(t, err, ErrInvalidProgress)

	_, err = service.Upsert(ctx, "user_1", &models.ProgressSnapshot{LastActiveDate: "15/10/2026"})
	require.ErrorIs(t, err, ErrInvalidProgress)

	_, err = service.Upsert(ctx, "user_1", nil)
	require.ErrorIs(t, err, ErrInvalidProgress)
}

func TestMerge_Monotonic(t *testing.T) {
	a := &models.ProgressSnapshot{
		UserID:           "u",
		CompletedTaskIDs: []string{"t1", "t3"},
		StreakDays:       3,
		BonusXP:          9,
		BonusHax:         1,
		LastActiveDate:   "2026-10-14",
		UpdatedAt:        testNow,
	}
	b := &models.ProgressSnapshot{
		UserID:           "u",
		CompletedTaskIDs: []string{"t2", "t3"},
		StreakDays:       1,
		BonusXP:          2,
		BonusHax:         8,
		LastActiveDate:   "2026-10-15",
		UpdatedAt:        testNow.Add(-time.Minute),
	}

	for _, m := range []*models.ProgressSnapshot{Merge(a, b), Merge(b, a)} {
		assert.Equal(t, []string{"t1", "t2", "t3"}, m.CompletedTaskIDs)
		assert.Equal(t, 3, m.StreakDays)
		assert.Equal(t, 9, m.BonusXP)
		assert.Equal(t, 8, m.BonusHax)
		assert.Equal(t, "2026-10-15", m.LastActiveDate)
		assert.True(t, m.UpdatedAt.Equal(testNow))
	}

	// merging is idempotent
	once := Merge(a, b)
	assert.Equal(t, once, Merge(once, b))
}

func TestMergeQuest(t *testing.T) {
	older := models.DailyQuest{TaskID: "t1", RequiredScore: 70, Completed: true, AssignedDate: "2026-10-14"}
	today := models.DailyQuest{TaskID: "t2", RequiredScore: 80, AssignedDate: "2026-10-15"}
	assert.Equal(t, today, mergeQuest(older, today))
	assert.Equal(t, today, mergeQuest(today, older))

	done := today
	done.Completed = true
	assert.True(t, mergeQuest(today, done).Completed)
	assert.True(t, mergeQuest(done, today).Completed)
}

func TestNextStreak(t *testing.T) {
	cases := []struct {
		streak int
		last   string
		want   int
	}{
		{3, "2026-10-14", 4},
		{3, "2026-10-15", 3},
		{3, "2026-10-13", 1},
		{3, "", 1},
		{0, "2026-10-14", 1},
		{3, "garbage", 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NextStreak(tc.streak, tc.last, "2026-10-15"), "%d %q", tc.streak, tc.last)
	}
}

func TestProgress_RecomputeStreak(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceProgress](t, env)
	ctx := context.Background()

	seedProgress(t, env, &models.ProgressSnapshot{UserID: "user_1", StreakDays: 3, LastActiveDate: "2026-10-14"})
	p, err := service.RecomputeStreak(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.StreakDays)
	assert.Equal(t, "2026-10-15", p.LastActiveDate)

	// same day keeps the value
	p, err = service.RecomputeStreak(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.StreakDays)

	// a gap lowers it, which a merge would never do
	seedProgress(t, env, &models.ProgressSnapshot{UserID: "user_2", StreakDays: 9, LastActiveDate: "2026-10-01"})
	p, err = service.RecomputeStreak(ctx, "user_2")
	require.NoError(t, err)
	assert.Equal(t, 1, p.StreakDays)
}

func TestProgress_ResetDailyQuest(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceProgress](t, env)

	seedProgress(t, env, &models.ProgressSnapshot{
		UserID:     "user_1",
		DailyQuest: models.DailyQuest{TaskID: "t1", RequiredScore: 70, Completed: true, AssignedDate: "2026-10-15"},
	})

	p, err := service.ResetDailyQuest(context.Background(), "user_1")
	require.NoError(t, err)
	assert.False(t, p.DailyQuest.Completed)
	assert.Equal(t, "2026-10-15", p.DailyQuest.AssignedDate)
	assert.NotEmpty(t, p.DailyQuest.TaskID)
}

func TestProgress_CompleteTask(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceProgress](t, env)
	ctx := context.Background()

	p, err := service.Get(ctx, "user_1")
	require.NoError(t, err)
	quest := p.DailyQuest

	// below the required score: task counts, quest stays open
	p, err = service.CompleteTask(ctx, "user_1", quest.TaskID, quest.RequiredScore-1)
	require.NoError(t, err)
	assert.Contains(t, p.CompletedTaskIDs, quest.TaskID)
	assert.False(t, p.DailyQuest.Completed)
	assert.Equal(t, 1, p.StreakDays)
	assert.Equal(t, "2026-10-15", p.LastActiveDate)

	p, err = service.CompleteTask(ctx, "user_1", quest.TaskID, 100)
	require.NoError(t, err)
	assert.True(t, p.DailyQuest.Completed)
	assert.Len(t, p.CompletedTaskIDs, 1)
	assert.Equal(t, 1, p.StreakDays)

	env.clock.Advance(24 * time.Hour)
	p, err = service.CompleteTask(ctx, "user_1", quest.TaskID, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, p.StreakDays)
	assert.Equal(t, "2026-10-16", p.DailyQuest.AssignedDate)

	_, err = service.CompleteTask(ctx, "user_1", "missing", 100)
	require.ErrorIs(t, err, ErrUnknownTask)
	_, err = service.CompleteTask(ctx, "user_1", "t1", 101)
	require.ErrorIs(t, err, ErrInvalidProgress)
}

func TestProgress_EvictFromMemory(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceProgress](t, env)
	ctx := context.Background()

	_, err := service.Get(ctx, "user_1")
	require.NoError(t, err)

	n, err := service.EvictFromMemory(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
