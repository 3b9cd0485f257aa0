package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"haxquest/internal/datastore"
	"haxquest/internal/interfaces"
	"haxquest/internal/models"
	"haxquest/internal/pkg"
	"haxquest/internal/scoring"

	"github.com/samber/do"
)

type ServiceProgress struct {
	container *do.Injector
	gateway   datastore.Gateway
	clock     pkg.Clock
	locker    interfaces.Locker
	catalog   *scoring.Catalog
	quests    *scoring.QuestRotation

	serviceLeaderboard *ServiceLeaderboard
}

func NewServiceProgress(container *do.Injector) (*ServiceProgress, error) {
	gateway, err := do.Invoke[datastore.Gateway](container)
	if err != nil {
		return nil, err
	}

	clock, err := do.Invoke[pkg.Clock](container)
	if err != nil {
		return nil, err
	}

	locker, err := do.Invoke[interfaces.Locker](container)
	if err != nil {
		return nil, err
	}

	catalog, err := do.Invoke[*scoring.Catalog](container)
	if err != nil {
		return nil, err
	}

	quests, err := do.Invoke[*scoring.QuestRotation](container)
	if err != nil {
		return nil, err
	}

	serviceLeaderboard, err := do.Invoke[*ServiceLeaderboard](container)
	if err != nil {
		return nil, err
	}

	return &ServiceProgress{container, gateway, clock, locker, catalog, quests, serviceLeaderboard}, nil
}

// Get returns the stored snapshot, creating the default one for unseen users.
// A quest assigned on an earlier day is shown as today's rotation; it is
// persisted by the next write.
func (service *ServiceProgress) Get(ctx context.Context, userID string) (*models.ProgressSnapshot, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	p, err := service.mutate(ctx, userID, func(_ *models.ProgressSnapshot, created bool, _ string) bool {
		return created
	})
	if err != nil {
		return nil, err
	}
	service.rotateQuest(p, pkg.FormatDate(service.clock.Now()))
	return p, nil
}

// Upsert merges incoming into the stored snapshot. Stale copies never lower
// any counter or drop a completed task.
func (service *ServiceProgress) Upsert(ctx context.Context, userID string, incoming *models.ProgressSnapshot) (*models.ProgressSnapshot, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	if incoming == nil {
		return nil, fmt.Errorf("%w: empty snapshot", ErrInvalidProgress)
	}
	if err := service.validate(incoming); err != nil {
		return nil, err
	}

	return service.mutate(ctx, userID, func(p *models.ProgressSnapshot, _ bool, today string) bool {
		*p = *Merge(p, incoming)
		service.rotateQuest(p, today)
		return true
	})
}

// ResetDailyQuest replaces the quest with today's rotation, uncompleted.
func (service *ServiceProgress) ResetDailyQuest(ctx context.Context, userID string) (*models.ProgressSnapshot, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	return service.mutate(ctx, userID, func(p *models.ProgressSnapshot, _ bool, _ string) bool {
		p.DailyQuest = service.quests.For(service.clock.Now())
		return true
	})
}

func (service *ServiceProgress) RecomputeStreak(ctx context.Context, userID string) (*models.ProgressSnapshot, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	return service.mutate(ctx, userID, func(p *models.ProgressSnapshot, _ bool, today string) bool {
		p.StreakDays = NextStreak(p.StreakDays, p.LastActiveDate, today)
		p.LastActiveDate = today
		return true
	})
}

// CompleteTask records a finished module and the score it was finished with.
// The daily quest completes when the task matches and the score reaches the
// required percentage.
func (service *ServiceProgress) CompleteTask(ctx context.Context, userID string, taskID string, score int) (*models.ProgressSnapshot, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	if _, ok := service.catalog.Lookup(taskID); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("%w: score %d outside [0, 100]", ErrInvalidProgress, score)
	}

	return service.mutate(ctx, userID, func(p *models.ProgressSnapshot, _ bool, today string) bool {
		if !p.HasTask(taskID) {
			p.CompletedTaskIDs = append(p.CompletedTaskIDs, taskID)
		}
		service.rotateQuest(p, today)
		if p.DailyQuest.TaskID == taskID && score >= p.DailyQuest.RequiredScore {
			p.DailyQuest.Completed = true
		}
		if p.LastActiveDate != today {
			p.StreakDays = NextStreak(p.StreakDays, p.LastActiveDate, today)
			p.LastActiveDate = today
		}
		return true
	})
}

// EvictFromMemory drops the in-process copy only; the durable record stays.
func (service *ServiceProgress) EvictFromMemory(ctx context.Context, userID string) (int, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return 0, err
	}
	n, _, err := datastore.EvictProgress(ctx, service.gateway, userID)
	if err != nil {
		return 0, err
	}
	service.serviceLeaderboard.ClearLeaderboardCache(ctx)
	return n, nil
}

func (service *ServiceProgress) Recent(ctx context.Context, limit int) ([]*models.ProgressSample, error) {
	snapshots, err := datastore.ListRecentProgress(ctx, service.gateway, limit)
	if err != nil {
		return nil, err
	}
	samples := make([]*models.ProgressSample, 0, len(snapshots))
	for _, s := range snapshots {
		samples = append(samples, &models.ProgressSample{
			UserID:         s.UserID,
			CompletedTasks: len(s.CompletedTaskIDs),
			StreakDays:     s.StreakDays,
			QuestCompleted: s.DailyQuest.Completed,
			UpdatedAt:      s.UpdatedAt,
		})
	}
	return samples, nil
}

func (service *ServiceProgress) Catalog() []scoring.Task {
	return service.catalog.Tasks()
}

// mutate loads (or creates) the snapshot under the user lock, applies fn and
// persists when fn reports a change. updated_at never moves backwards.
func (service *ServiceProgress) mutate(ctx context.Context, userID string, fn func(p *models.ProgressSnapshot, created bool, today string) bool) (*models.ProgressSnapshot, error) {
	unlock, err := service.locker.Lock(ctx, LockKeyUserProgress(userID))
	if err != nil {
		return nil, errors.Join(ErrUserLock, err)
	}
	defer unlock()

	now := service.clock.Now()
	today := pkg.FormatDate(now)

	current, err := datastore.GetProgress(ctx, service.gateway, userID)
	created := false
	if errors.Is(err, datastore.ErrNotFound) {
		current = service.defaultSnapshot(userID, now)
		created = true
	} else if err != nil {
		return nil, err
	}

	if !fn(current, created, today) {
		return current, nil
	}

	if now.After(current.UpdatedAt) {
		current.UpdatedAt = now
	}
	if _, err := datastore.SaveProgress(ctx, service.gateway, current); err != nil {
		return nil, err
	}
	service.serviceLeaderboard.ClearLeaderboardCache(ctx)
	return current, nil
}

func (service *ServiceProgress) defaultSnapshot(userID string, now time.Time) *models.ProgressSnapshot {
	return &models.ProgressSnapshot{
		UserID:           userID,
		CompletedTaskIDs: []string{},
		DailyQuest:       service.quests.For(now),
		UpdatedAt:        now,
	}
}

func (service *ServiceProgress) rotateQuest(p *models.ProgressSnapshot, today string) bool {
	if p.DailyQuest.AssignedDate >= today && p.DailyQuest.TaskID != "" {
		return false
	}
	p.DailyQuest = service.quests.For(service.clock.Now())
	return true
}

func (service *ServiceProgress) validate(p *models.ProgressSnapshot) error {
	if p.StreakDays < 0 || p.BonusXP < 0 || p.BonusHax < 0 {
		return fmt.Errorf("%w: counters must be non-negative", ErrInvalidProgress)
	}
	for _, id := range p.CompletedTaskIDs {
		if _, ok := service.catalog.Lookup(id); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTask, id)
		}
	}
	if p.DailyQuest.TaskID != "" {
		if _, ok := service.catalog.Lookup(p.DailyQuest.TaskID); !ok {
			return fmt.Errorf("%w: quest %q", ErrUnknownTask, p.DailyQuest.TaskID)
		}
	}
	if p.LastActiveDate != "" {
		if _, err := pkg.ParseDate(p.LastActiveDate); err != nil {
			return fmt.Errorf("%w: last_active_date %q", ErrInvalidProgress, p.LastActiveDate)
		}
	}
	if p.DailyQuest.AssignedDate != "" {
		if _, err := pkg.ParseDate(p.DailyQuest.AssignedDate); err != nil {
			return fmt.Errorf("%w: assigned_date %q", ErrInvalidProgress, p.DailyQuest.AssignedDate)
		}
	}
	return nil
}

// Merge combines two copies of one user's snapshot: tasks are unioned,
// counters and dates take the maximum. The user id of a wins.
func Merge(a, b *models.ProgressSnapshot) *models.ProgressSnapshot {
	out := &models.ProgressSnapshot{
		UserID:         a.UserID,
		StreakDays:     max(a.StreakDays, b.StreakDays),
		BonusXP:        max(a.BonusXP, b.BonusXP),
		BonusHax:       max(a.BonusHax, b.BonusHax),
		DailyQuest:     mergeQuest(a.DailyQuest, b.DailyQuest),
		LastActiveDate: a.LastActiveDate,
		UpdatedAt:      a.UpdatedAt,
	}
	if b.LastActiveDate > out.LastActiveDate {
		out.LastActiveDate = b.LastActiveDate
	}
	if b.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = b.UpdatedAt
	}

	seen := make(map[string]struct{}, len(a.CompletedTaskIDs)+len(b.CompletedTaskIDs))
	out.CompletedTaskIDs = make([]string, 0, len(seen))
	for _, ids := range [][]string{a.CompletedTaskIDs, b.CompletedTaskIDs} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out.CompletedTaskIDs = append(out.CompletedTaskIDs, id)
		}
	}
	sort.Strings(out.CompletedTaskIDs)
	return out
}

// mergeQuest keeps the most recently assigned quest. For the same day a
// completion on either side wins.
func mergeQuest(a, b models.DailyQuest) models.DailyQuest {
	switch {
	case b.AssignedDate > a.AssignedDate:
		return b
	case a.AssignedDate > b.AssignedDate:
		return a
	}
	if a.TaskID == "" {
		return b
	}
	if b.Completed && !a.Completed && b.TaskID != a.TaskID {
		return b
	}
	if b.Completed && b.TaskID == a.TaskID {
		a.Completed = true
	}
	return a
}

// NextStreak applies the daily streak rule: yesterday extends, today keeps,
// any longer gap or no history restarts at one.
func NextStreak(streak int, lastActive string, today string) int {
	if lastActive == "" {
		return 1
	}
	gap, err := pkg.DaysBetween(lastActive, today)
	if err != nil {
		return 1
	}
	switch gap {
	case 0:
		return streak
	case 1:
		return streak + 1
	default:
		return 1
	}
}
