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

func TestComputeSLO(t *testing.T) {
	recent := []models.PurgeRecord{{At: testNow.Add(-time.Hour), Deleted: 3}}

	cases := []struct {
		name   string
		stats  models.ReplayStats
		purges []models.PurgeRecord
		want   models.SLOLevel
	}{
		{"empty", models.ReplayStats{}, nil, models.SLOOk},
		{"healthy", models.ReplayStats{Total: 40, Live: 38, Expired: 2, ExpiredRatio: 0.05}, recent, models.SLOOk},
		{"expired warn", models.ReplayStats{Total: 200, Expired: 30, ExpiredRatio: 0.15}, recent, models.SLOWarn},
		{"expired critical", models.ReplayStats{Total: 400, Expired: 100, ExpiredRatio: 0.25}, recent, models.SLOCritical},
		{"ratio warn", models.ReplayStats{Total: 10, Expired: 6, ExpiredRatio: 0.6}, recent, models.SLOWarn},
		{"ratio critical", models.ReplayStats{Total: 10, Expired: 9, ExpiredRatio: 0.9}, recent, models.SLOCritical},
		{"ratio ignored below minimum total", models.ReplayStats{Total: 5, Expired: 5, ExpiredRatio: 1}, recent, models.SLOOk},
		{"never purged", models.ReplayStats{Total: 20, Expired: 1, ExpiredRatio: 0.05}, nil, models.SLOWarn},
		{"stale purge warn", models.ReplayStats{Total: 20, Expired: 1, ExpiredRatio: 0.05}, []models.PurgeRecord{{At: testNow.Add(-7 * time.Hour)}}, models.SLOWarn},
		{"stale purge critical", models.ReplayStats{Total: 20, Expired: 1, ExpiredRatio: 0.05}, []models.PurgeRecord{{At: testNow.Add(-25 * time.Hour)}}, models.SLOCritical},
		{"stale purge without backlog", models.ReplayStats{Total: 20}, []models.PurgeRecord{{At: testNow.Add(-72 * time.Hour)}}, models.SLOOk},
		{"large purges warn", models.ReplayStats{}, []models.PurgeRecord{{At: testNow, Deleted: 60}, {At: testNow, Deleted: 40}}, models.SLOWarn},
		{"large purges critical", models.ReplayStats{}, []models.PurgeRecord{{At: testNow, Deleted: 250}}, models.SLOCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats := tc.stats
			slo := ComputeSLO(&stats, tc.purges, testNow)
			assert.Equal(t, tc.want, slo.Level, slo.Reasons)
			assert.Equal(t, tc.want == models.SLOOk, len(slo.Reasons) == 0)
			assert.True(t, slo.CheckedAt.Equal(testNow))
		})
	}
}

func TestComputeSLO_AverageUsesNewestWindow(t *testing.T) {
	purges := make([]models.PurgeRecord, 0, SLO_PURGE_WINDOW+3)
	for i := 0; i < SLO_PURGE_WINDOW; i++ {
		purges = append(purges, models.PurgeRecord{At: testNow, Deleted: 1})
	}
	for i := 0; i < 3; i++ {
		purges = append(purges, models.PurgeRecord{At: testNow.Add(-time.Hour), Deleted: 10_000})
	}
	slo := ComputeSLO(&models.ReplayStats{}, purges, testNow)
	assert.Equal(t, models.SLOOk, slo.Level)
}

// seedCriticalBacklog leaves ten expired replay entries behind.
func seedCriticalBacklog(t *testing.T, env *testEnv) {
	t.Helper()
	replay := invoke[*ServiceReplay](t, env)
	for i := 0; i < 10; i++ {
		_, err := replay.Remember(context.Background(), fmt.Sprintf("stale-%d", i), "purge-replay", "", 200, nil, 5*time.Second)
		require.NoError(t, err)
	}
	env.clock.Advance(time.Minute)
}

func TestSLO_AutoRemediationDisabled(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceSLO](t, env)
	ctx := context.Background()
	seedCriticalBacklog(t, env)

	_, slo, err := service.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, models.SLOCritical, slo.Level)

	result, err := service.MaybeAutoRemediate(ctx, slo)
	require.NoError(t, err)
	assert.False(t, result.Enabled)
	assert.False(t, result.Attempted)
	assert.Equal(t, REMEDIATION_DISABLED, result.Reason)
}

func TestSLO_AutoRemediationCycle(t *testing.T) {
	env := newTestEnv(t, map[string]string{CONFIG_AUTO_REMEDIATION_ENABLED: "true"})
	service := invoke[*ServiceSLO](t, env)
	audit := invoke[*ServiceAudit](t, env)
	ctx := context.Background()

	result, err := service.MaybeAutoRemediate(ctx, models.SLOStatus{Level: models.SLOWarn})
	require.NoError(t, err)
	assert.Equal(t, REMEDIATION_NOT_CRITICAL, result.Reason)
	assert.Nil(t, result.LastRunAt)

	seedCriticalBacklog(t, env)
	_, slo, err := service.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, models.SLOCritical, slo.Level)

	result, err = service.MaybeAutoRemediate(ctx, slo)
	require.NoError(t, err)
	assert.True(t, result.Attempted)
	assert.Equal(t, REMEDIATION_PURGED, result.Reason)
	assert.Equal(t, 10, result.Deleted)
	assert.Equal(t, 30, result.CooldownMinutes)
	require.NotNil(t, result.NextEligibleAt)
	assert.True(t, result.NextEligibleAt.Equal(env.clock.Now().Add(30*time.Minute)))

	last, err := audit.LastByAction(ctx, AUDIT_ACTION_AUTO_PURGE)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, AUDIT_MODE_SYSTEM, last.AdminMode)
	require.NotNil(t, last.Details)
	assert.Equal(t, 10, last.Details.Purge.Deleted)
	assert.Equal(t, string(models.SLOCritical), last.Details.Remediation.Level)

	// still critical on paper, but inside the cooldown
	result, err = service.MaybeAutoRemediate(ctx, slo)
	require.NoError(t, err)
	assert.False(t, result.Attempted)
	assert.Equal(t, REMEDIATION_COOLDOWN, result.Reason)

	env.clock.Advance(31 * time.Minute)
	result, err = service.MaybeAutoRemediate(ctx, slo)
	require.NoError(t, err)
	assert.True(t, result.Attempted)
	assert.Zero(t, result.Deleted)

	purges, err := audit.RecentPurges(ctx, SLO_PURGE_WINDOW)
	require.NoError(t, err)
	assert.Len(t, purges, 2)
}
