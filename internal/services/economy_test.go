package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"haxquest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEconomy_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceEconomy](t, env)
	ctx := context.Background()
	seedProgress(t, env, &models.ProgressSnapshot{UserID: "user_1", BonusHax: 5})

	result, err := service.ChargeFeature(ctx, "user_1", models.FeatureAlert, 2, "web", "ref-1")
	require.NoError(t, err)
	assert.False(t, result.Charged)
	assert.Contains(t, result.Reason, "required=6, available=5")
	assert.Equal(t, int64(5), result.Balance.Available)

	entries, err := service.Entries(ctx, "user_1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEconomy_ChargeIsIdempotentOnRef(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceEconomy](t, env)
	ctx := context.Background()
	seedProgress(t, env, &models.ProgressSnapshot{UserID: "user_1", CompletedTaskIDs: []string{"t3"}, BonusHax: 90})

	first, err := service.ChargeFeature(ctx, "user_1", models.FeatureChat, 3, "web", "chat-42")
	require.NoError(t, err)
	require.True(t, first.Charged)
	assert.False(t, first.Duplicate)
	assert.Equal(t, int64(3), first.Entry.TotalCost)
	assert.Equal(t, models.Balance{Earned: 100, Spent: 3, Available: 97}, first.Balance)

	second, err := service.ChargeFeature(ctx, "user_1", models.FeatureChat, 3, "web", " chat-42 ")
	require.NoError(t, err)
	assert.True(t, second.Charged)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Equal(t, int64(97), second.Balance.Available)

	entries, err := service.Entries(ctx, "user_1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEconomy_ConcurrentChargesSameRef(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceEconomy](t, env)
	ctx := context.Background()
	seedProgress(t, env, &models.ProgressSnapshot{UserID: "user_1", BonusHax: 100})

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := service.ChargeFeature(ctx, "user_1", models.FeatureRunner, 1, "web", "run-1")
			if assert.NoError(t, err) && assert.True(t, result.Charged) {
				ids[i] = result.Entry.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	balance, err := service.Balance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(98), balance.Available)
}

func TestEconomy_AvailableNeverNegative(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceEconomy](t, env)
	ctx := context.Background()
	seedProgress(t, env, &models.ProgressSnapshot{UserID: "user_1", BonusHax: 10})

	charged := 0
	for i := 0; i < 6; i++ {
		result, err := service.ChargeFeature(ctx, "user_1", models.FeatureRunner, 1, "web", fmt.Sprintf("r-%d", i))
		require.NoError(t, err)
		if result.Charged {
			charged++
		}
		assert.GreaterOrEqual(t, result.Balance.Available, int64(0))
	}
	assert.Equal(t, 5, charged)

	// earned can drop below spent when progress is replaced
	seedProgress(t, env, &models.ProgressSnapshot{UserID: "user_1", BonusHax: 4})
	balance, err := service.Balance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, models.Balance{Earned: 4, Spent: 10, Available: 0}, *balance)
}

func TestEconomy_UnknownUserHasZeroBalance(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceEconomy](t, env)

	balance, err := service.Balance(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, models.Balance{}, *balance)
}

func TestEconomy_CreditSeasonReward(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceEconomy](t, env)
	ctx := context.Background()

	result, err := service.CreditSeasonReward(ctx, "user_1", 250, "season:weekly:2026-10-12:user_1:rank2", "payout")
	require.NoError(t, err)
	require.True(t, result.Charged)
	assert.Equal(t, models.FeatureSeasonReward, result.Entry.Feature)
	assert.Equal(t, int64(-250), result.Entry.TotalCost)
	assert.Equal(t, int64(250), result.Balance.Available)

	charge, err := service.ChargeFeature(ctx, "user_1", models.FeatureBotCreate, 10, "web", "bots")
	require.NoError(t, err)
	assert.True(t, charge.Charged)
	assert.Equal(t, int64(0), charge.Balance.Available)
}

func TestEconomy_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceEconomy](t, env)
	ctx := context.Background()

	_, err := service.ChargeFeature(ctx, "user_1", models.FeatureSeasonReward, 1, "web", "r")
	require.ErrorIs(t, err, ErrUnknownFeature)
	_, err = service.ChargeFeature(ctx, "user_1", "teleport", 1, "web", "r")
	require.ErrorIs(t, err, ErrUnknownFeature)
	_, err = service.ChargeFeature(ctx, "user_1", models.FeatureChat, 0, "web", "r")
	require.ErrorIs(t, err, ErrInvalidUnits)
	_, err = service.ChargeFeature(ctx, "user_1", models.FeatureChat, MAX_CHARGE_UNITS+1, "web", "r")
	require.ErrorIs(t, err, ErrInvalidUnits)
	_, err = service.ChargeFeature(ctx, "user_1", models.FeatureChat, 1, "web", "  ")
	require.ErrorIs(t, err, ErrMissingRef)
	_, err = service.CreditSeasonReward(ctx, "user_1", 0, "r", "payout")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestEconomy_RefOwnedByAnotherUser(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceEconomy](t, env)
	ctx := context.Background()

	_, err := service.CreditSeasonReward(ctx, "user_1", 10, "shared", "payout")
	require.NoError(t, err)

	_, err = service.CreditSeasonReward(ctx, "user_2", 10, "shared", "payout")
	require.ErrorIs(t, err, ErrRefConflict)
}

func TestEconomy_FindByRef(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceEconomy](t, env)
	ctx := context.Background()

	entry, err := service.FindByRef(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)

	_, err = service.CreditSeasonReward(ctx, "user_1", 10, "present", "payout")
	require.NoError(t, err)
	entry, err = service.FindByRef(ctx, "present")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "user_1", entry.UserID)
}
