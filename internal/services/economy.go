package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"haxquest/internal/datastore"
	"haxquest/internal/interfaces"
	"haxquest/internal/models"
	"haxquest/internal/pkg"
	"haxquest/internal/scoring"

	"github.com/google/uuid"
	"github.com/samber/do"
)

type ServiceEconomy struct {
	container *do.Injector
	gateway   datastore.Gateway
	clock     pkg.Clock
	locker    interfaces.Locker
	catalog   *scoring.Catalog
	settings  *Settings
}

func NewServiceEconomy(container *do.Injector) (*ServiceEconomy, error) {
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

	settings, err := do.Invoke[*Settings](container)
	if err != nil {
		return nil, err
	}

	return &ServiceEconomy{container, gateway, clock, locker, catalog, settings}, nil
}

// Balance derives the spendable HAX: earned from progress minus the signed
// sum of the ledger, floored at zero.
func (service *ServiceEconomy) Balance(ctx context.Context, userID string) (*models.Balance, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	return service.balance(ctx, userID)
}

func (service *ServiceEconomy) balance(ctx context.Context, userID string) (*models.Balance, error) {
	var earned int64
	snapshot, err := datastore.GetProgress(ctx, service.gateway, userID)
	switch {
	case err == nil:
		earned = int64(scoring.Score(snapshot, service.catalog).TotalHax)
	case !errors.Is(err, datastore.ErrNotFound):
		return nil, err
	}

	spent, err := datastore.SumLedgerCost(ctx, service.gateway, userID)
	if err != nil {
		return nil, err
	}
	return &models.Balance{Earned: earned, Spent: spent, Available: max(0, earned-spent)}, nil
}

func (service *ServiceEconomy) UnitCost(feature models.Feature) (int64, bool) {
	cost, ok := service.settings.FeatureCosts[feature]
	return cost, ok
}

// ChargeFeature spends units of a feature. A ref seen before returns the
// original entry; a short balance is reported in the result, not as an error.
func (service *ServiceEconomy) ChargeFeature(ctx context.Context, userID string, feature models.Feature, units int64, source string, ref string) (*models.ChargeResult, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	unitCost, ok := service.UnitCost(feature)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}
	if units <= 0 || units > MAX_CHARGE_UNITS {
		return nil, fmt.Errorf("%w: %d", ErrInvalidUnits, units)
	}
	ref, err = normalizeRef(ref)
	if err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		UserID:         userID,
		Feature:        feature,
		Units:          units,
		UnitCost:       unitCost,
		TotalCost:      units * unitCost,
		Source:         source,
		TransactionRef: ref,
	}
	return service.append(ctx, entry, true)
}

// CreditSeasonReward appends a negative-cost entry, idempotent on ref.
func (service *ServiceEconomy) CreditSeasonReward(ctx context.Context, userID string, amount int64, ref string, source string) (*models.ChargeResult, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	ref, err = normalizeRef(ref)
	if err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		UserID:         userID,
		Feature:        models.FeatureSeasonReward,
		Units:          1,
		UnitCost:       -amount,
		TotalCost:      -amount,
		Source:         source,
		TransactionRef: ref,
	}
	return service.append(ctx, entry, false)
}

func (service *ServiceEconomy) FindByRef(ctx context.Context, ref string) (*models.LedgerEntry, error) {
	entry, err := datastore.GetLedgerEntryByRef(ctx, service.gateway, ref)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

func (service *ServiceEconomy) Entries(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	return datastore.ListLedgerEntries(ctx, service.gateway, userID, clampLimit(limit, LEDGER_DEFAULT_LIMIT, LEDGER_MAX_LIMIT))
}

// append runs check-then-insert under the user's ledger lock. The insert is
// also conditional on the ref at the storage level, so a writer in another
// process cannot produce a second row.
func (service *ServiceEconomy) append(ctx context.Context, entry *models.LedgerEntry, checkBalance bool) (*models.ChargeResult, error) {
	unlock, err := service.locker.Lock(ctx, LockKeyUserLedger(entry.UserID))
	if err != nil {
		return nil, errors.Join(ErrUserLock, err)
	}
	defer unlock()

	if result, err := service.existing(ctx, entry); result != nil || err != nil {
		return result, err
	}

	balance, err := service.balance(ctx, entry.UserID)
	if err != nil {
		return nil, err
	}
	if checkBalance && balance.Available < entry.TotalCost {
		return &models.ChargeResult{
			Charged: false,
			Reason:  fmt.Sprintf("insufficient balance: required=%d, available=%d", entry.TotalCost, balance.Available),
			Balance: *balance,
		}, nil
	}

	entry.ID = uuid.NewString()
	entry.CreatedAt = service.clock.Now()
	inserted, err := datastore.InsertLedgerEntry(ctx, service.gateway, entry)
	if err != nil {
		return nil, err
	}
	if !inserted {
		if result, err := service.existing(ctx, entry); result != nil || err != nil {
			return result, err
		}
		return nil, fmt.Errorf("ledger ref %q rejected without a stored entry", entry.TransactionRef)
	}

	balance.Spent += entry.TotalCost
	balance.Available = max(0, balance.Earned-balance.Spent)
	return &models.ChargeResult{Charged: true, Entry: entry, Balance: *balance}, nil
}

func (service *ServiceEconomy) existing(ctx context.Context, entry *models.LedgerEntry) (*models.ChargeResult, error) {
	found, err := service.FindByRef(ctx, entry.TransactionRef)
	if err != nil || found == nil {
		return nil, err
	}
	if found.UserID != entry.UserID {
		return nil, fmt.Errorf("%w: %q", ErrRefConflict, entry.TransactionRef)
	}
	balance, err := service.balance(ctx, entry.UserID)
	if err != nil {
		return nil, err
	}
	return &models.ChargeResult{Charged: true, Duplicate: true, Entry: found, Balance: *balance}, nil
}

func normalizeRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrMissingRef
	}
	if len(ref) > MAX_REF_LENGTH {
		return "", fmt.Errorf("%w: longer than %d", ErrMissingRef, MAX_REF_LENGTH)
	}
	return ref, nil
}
