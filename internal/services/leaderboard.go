package services

import (
	"context"
	"log/slog"

	"haxquest/internal/datastore"
	"haxquest/internal/models"
	"haxquest/internal/pkg"
	"haxquest/internal/pkg/caching"
	"haxquest/internal/scoring"

	"github.com/samber/do"
)

type ServiceLeaderboard struct {
	container *do.Injector
	gateway   datastore.Gateway
	clock     pkg.Clock
	catalog   *scoring.Catalog
	cache     caching.Cache
	settings  *Settings
}

func NewServiceLeaderboard(container *do.Injector) (*ServiceLeaderboard, error) {
	gateway, err := do.Invoke[datastore.Gateway](container)
	if err != nil {
		return nil, err
	}

	clock, err := do.Invoke[pkg.Clock](container)
	if err != nil {
		return nil, err
	}

	catalog, err := do.Invoke[*scoring.Catalog](container)
	if err != nil {
		return nil, err
	}

	cache, err := do.Invoke[caching.Cache](container)
	if err != nil {
		return nil, err
	}

	settings, err := do.Invoke[*Settings](container)
	if err != nil {
		return nil, err
	}

	return &ServiceLeaderboard{container, gateway, clock, catalog, cache, settings}, nil
}

// GetLeaderboard ranks the season window. The full ranked list (up to the
// max limit) is cached per season and sliced per request.
func (service *ServiceLeaderboard) GetLeaderboard(ctx context.Context, season scoring.Season, limit int) (*models.LeaderboardResponse, error) {
	limit = clampLimit(limit, LEADERBOARD_DEFAULT_LIMIT, LEADERBOARD_MAX_LIMIT)

	callback := func() ([]*models.LeaderboardEntry, error) {
		return service.rank(ctx, season, LEADERBOARD_MAX_LIMIT)
	}

	var entries []*models.LeaderboardEntry
	var err error
	if service.settings.LeaderboardCacheTTL > 0 {
		entries, err = caching.UseCache(ctx, service.cache, DBKeyLeaderboard(string(season)), service.settings.LeaderboardCacheTTL, callback)
	} else {
		entries, err = callback()
	}
	if err != nil {
		return nil, err
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return &models.LeaderboardResponse{
		Season:      string(season),
		WindowStart: scoring.WindowStart(season, service.clock.Now()),
		Leaderboard: entries,
	}, nil
}

// Standings ranks the window without the cache; payouts must see fresh data.
func (service *ServiceLeaderboard) Standings(ctx context.Context, season scoring.Season, limit int) ([]*models.LeaderboardEntry, error) {
	return service.rank(ctx, season, limit)
}

func (service *ServiceLeaderboard) rank(ctx context.Context, season scoring.Season, limit int) ([]*models.LeaderboardEntry, error) {
	now := service.clock.Now()
	snapshots, err := datastore.ListProgressSince(ctx, service.gateway, scoring.WindowStart(season, now))
	if err != nil {
		return nil, err
	}
	return scoring.Rank(snapshots, service.catalog, season, now, limit), nil
}

func (service *ServiceLeaderboard) ClearLeaderboardCache(ctx context.Context) {
	for _, season := range []scoring.Season{scoring.SeasonDaily, scoring.SeasonWeekly, scoring.SeasonAllTime} {
		if err := service.cache.Delete(ctx, DBKeyLeaderboard(string(season))); err != nil {
			slog.Debug("leaderboard cache delete failed", "season", season, "error", err)
		}
	}
}

// Score is the breakdown of a single snapshot against the active catalog.
func (service *ServiceLeaderboard) Score(p *models.ProgressSnapshot) models.ScoreBreakdown {
	return scoring.Score(p, service.catalog)
}
