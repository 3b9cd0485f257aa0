package datastore

import (
	"sync"
	"time"

	"haxquest/internal/models"
)

const (
	ModeMemory   = "memory"
	ModeRemote   = "remote"
	ModePostgres = "postgres"
)

// Status is the process-wide diagnostic state of the storage layer.
type Status struct {
	mu          sync.RWMutex
	configured  string
	mode        string
	fallback    bool
	lastError   string
	lastErrorAt *time.Time
	failures    int64
	remoteCalls int64
}

func NewStatus(configured, mode string, fallback bool) *Status {
	return &Status{configured: configured, mode: mode, fallback: fallback}
}

func (s *Status) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Status) recordCall() {
	s.mu.Lock()
	s.remoteCalls++
	s.mu.Unlock()
}

func (s *Status) recordError(err error, at time.Time) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.lastErrorAt = &at
	s.failures++
	s.mu.Unlock()
}

func (s *Status) Snapshot() models.StorageStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := models.StorageStatus{
		ConfiguredMode: s.configured,
		Mode:           s.mode,
		Fallback:       s.fallback,
		LastError:      s.lastError,
		Failures:       s.failures,
		RemoteCalls:    s.remoteCalls,
	}
	if s.lastErrorAt != nil {
		at := *s.lastErrorAt
		out.LastErrorAt = &at
	}
	return out
}
