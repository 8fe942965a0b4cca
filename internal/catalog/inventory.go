package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// Inventory is what the conversation engine needs from the catalog.
type Inventory interface {
	EnsureLoaded(ctx context.Context) error
	Snapshot() Snapshot
}

// Service caches the catalog and refreshes it from a Source when stale.
type Service struct {
	source  Source
	refresh time.Duration
	logger  *logging.Logger
	now     func() time.Time

	mu       sync.RWMutex
	snapshot Snapshot
	loaded   bool

	group singleflight.Group
}

// NewService builds an inventory service. refresh <= 0 loads once.
func NewService(source Source, refresh time.Duration, logger *logging.Logger) *Service {
	if source == nil {
		panic("catalog: source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{source: source, refresh: refresh, logger: logger, now: time.Now}
}

// EnsureLoaded reloads the catalog when it has never been loaded or is older
// than the refresh interval. Concurrent callers share one load. A failed
// refresh keeps serving the previous snapshot.
func (s *Service) EnsureLoaded(ctx context.Context) error {
	if !s.stale() {
		return nil
	}
	_, err, _ := s.group.Do("load", func() (any, error) {
		if !s.stale() {
			return nil, nil
		}
		items, err := s.source.Load(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.snapshot = Snapshot{Items: items, LoadedAt: s.now()}
		s.loaded = true
		s.mu.Unlock()
		s.logger.Info("catalog loaded", "items", len(items))
		return nil, nil
	})
	if err != nil {
		s.mu.RLock()
		hadSnapshot := s.loaded
		s.mu.RUnlock()
		if hadSnapshot {
			s.logger.Warn("catalog refresh failed, serving previous snapshot", "error", err)
			return nil
		}
		return err
	}
	return nil
}

// Snapshot returns the current catalog view.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Service) stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return true
	}
	return s.refresh > 0 && s.now().Sub(s.snapshot.LoadedAt) >= s.refresh
}
