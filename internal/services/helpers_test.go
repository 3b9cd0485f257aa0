package services

import (
	"context"
	"testing"
	"time"

	"haxquest/internal/datastore"
	"haxquest/internal/interfaces"
	"haxquest/internal/models"
	"haxquest/internal/pkg"
	"haxquest/internal/pkg/caching"
	"haxquest/internal/pkg/limiter"
	"haxquest/internal/pkg/lock"
	"haxquest/internal/scoring"

	"github.com/samber/do"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	injector *do.Injector
	clock    *pkg.ManualClock
	gateway  *datastore.Memory
	settings *Settings
}

// newTestEnv wires the services over the memory backend with a manual clock.
// The catalog has three tasks worth 100 XP and 20 HAX in total.
func newTestEnv(t *testing.T, vs map[string]string) *testEnv {
	t.Helper()
	if vs == nil {
		vs = map[string]string{}
	}

	catalog, err := scoring.NewCatalog(
		scoring.Task{ID: "t1", XP: 30, Hax: 5, QuestWeight: 1},
		scoring.Task{ID: "t2", XP: 30, Hax: 5, QuestWeight: 1},
		scoring.Task{ID: "t3", XP: 40, Hax: 10, QuestWeight: 1},
	)
	require.NoError(t, err)
	quests, err := scoring.NewQuestRotation(catalog)
	require.NoError(t, err)
	local, err := limiter.NewLocalLimiter(64)
	require.NoError(t, err)
	cache, err := caching.NewCacheRedis(nil, time.Minute)
	require.NoError(t, err)

	env := &testEnv{
		injector: do.New(),
		clock:    pkg.NewManualClock(testNow),
		gateway:  datastore.NewMemory(),
		settings: LoadSettings(vs),
	}

	do.ProvideValue[datastore.Gateway](env.injector, env.gateway)
	do.ProvideValue(env.injector, datastore.NewStatus("", datastore.ModeMemory, false))
	do.ProvideValue[pkg.Clock](env.injector, env.clock)
	do.ProvideValue(env.injector, env.settings)
	do.ProvideValue[interfaces.Locker](env.injector, lock.NewLocal())
	do.ProvideValue[interfaces.Limiter](env.injector, local)
	do.ProvideValue[caching.Cache](env.injector, cache)
	do.ProvideValue(env.injector, catalog)
	do.ProvideValue(env.injector, quests)
	ProvideServices(env.injector)
	return env
}

func invoke[T any](t *testing.T, env *testEnv) T {
	t.Helper()
	v, err := do.Invoke[T](env.injector)
	require.NoError(t, err)
	return v
}

// seedProgress writes a snapshot directly, bypassing merge rules.
func seedProgress(t *testing.T, env *testEnv, p *models.ProgressSnapshot) {
	t.Helper()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = env.clock.Now()
	}
	_, err := datastore.SaveProgress(context.Background(), env.gateway, p)
	require.NoError(t, err)
}
