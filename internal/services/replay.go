package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"haxquest/internal/datastore"
	"haxquest/internal/models"
	"haxquest/internal/pkg"

	"github.com/samber/do"
)

var replayKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

type ServiceReplay struct {
	container *do.Injector
	gateway   datastore.Gateway
	status    *datastore.Status
	clock     pkg.Clock
	settings  *Settings
}

func NewServiceReplay(container *do.Injector) (*ServiceReplay, error) {
	gateway, err := do.Invoke[datastore.Gateway](container)
	if err != nil {
		return nil, err
	}

	status, err := do.Invoke[*datastore.Status](container)
	if err != nil {
		return nil, err
	}

	clock, err := do.Invoke[pkg.Clock](container)
	if err != nil {
		return nil, err
	}

	settings, err := do.Invoke[*Settings](container)
	if err != nil {
		return nil, err
	}

	return &ServiceReplay{container, gateway, status, clock, settings}, nil
}

// NormalizeKey trims the caller's key. Keys outside the plain charset or
// longer than 128 characters are replaced by their sha256 digest. An empty
// result means the request carries no key.
func NormalizeKey(raw string) string {
	key := strings.TrimSpace(raw)
	if key == "" {
		return ""
	}
	if replayKeyPattern.MatchString(key) {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Lookup returns the live entry for key. Expired rows read as absent.
func (service *ServiceReplay) Lookup(ctx context.Context, key string) (*models.ReplayEntry, error) {
	entry, err := datastore.GetReplayEntry(ctx, service.gateway, key)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry.Expired(service.clock.Now()) {
		return nil, nil
	}
	return entry, nil
}

// Remember stores the outcome under key, replacing any previous entry. A
// non-positive ttl means the configured default; any ttl is clamped to the
// configured bounds.
func (service *ServiceReplay) Remember(ctx context.Context, key, action, targetUserID string, status int, body []byte, ttl time.Duration) (*models.ReplayEntry, error) {
	if ttl <= 0 {
		ttl = service.settings.ReplayTTL
	}
	ttl = pkg.ClampDuration(ttl, service.settings.ReplayTTLMin, service.settings.ReplayTTLMax)

	now := service.clock.Now()
	entry := &models.ReplayEntry{
		Key:          key,
		Action:       action,
		TargetUserID: targetUserID,
		Status:       status,
		ResponseBody: string(body),
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := datastore.SaveReplayEntry(ctx, service.gateway, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (service *ServiceReplay) PurgeExpired(ctx context.Context) (*models.PurgeResult, error) {
	deleted, err := datastore.DeleteExpiredReplayEntries(ctx, service.gateway, service.clock.Now())
	if err != nil {
		return nil, err
	}
	return &models.PurgeResult{DeletedCount: deleted, Mode: service.status.Mode()}, nil
}

func (service *ServiceReplay) Stats(ctx context.Context) (*models.ReplayStats, error) {
	entries, err := datastore.ListReplayEntries(ctx, service.gateway)
	if err != nil {
		return nil, err
	}
	now := service.clock.Now()
	stats := &models.ReplayStats{Total: len(entries)}
	for _, e := range entries {
		if !e.Expired(now) {
			stats.Live++
			continue
		}
		stats.Expired++
		if stats.OldestExpiredAt == nil || e.ExpiresAt.Before(*stats.OldestExpiredAt) {
			at := e.ExpiresAt
			stats.OldestExpiredAt = &at
		}
	}
	if stats.Total > 0 {
		stats.ExpiredRatio = float64(stats.Expired) / float64(stats.Total)
	}
	return stats, nil
}
