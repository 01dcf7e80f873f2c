package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// StateKey identifies the container state slot.
const StateKey = "iframe_container_state"

// DefaultMaxAge is how long a saved snapshot stays usable.
const DefaultMaxAge = 30 * time.Second

// ContainerState is the snapshot persisted across reloads.
type ContainerState struct {
	CurrentFrontendURL string `json:"currentFrontendUrl"`
	LastKnownURL       string `json:"lastKnownUrl"`
	AgentVisible       bool   `json:"agentVisible"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// Slot reads and writes the state snapshot of one tab.
type Slot struct {
	store  Store
	key    string
	maxAge time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewSlot binds a slot to the tab identified by scope. An empty scope uses
// the bare StateKey.
func NewSlot(store Store, scope string, maxAge time.Duration, now func() time.Time, logger *zap.Logger) *Slot {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	key := StateKey
	if scope != "" {
		key = scope + ":" + StateKey
	}
	return &Slot{store: store, key: key, maxAge: maxAge, now: now, logger: logger}
}

// Key returns the storage key of this slot.
func (s *Slot) Key() string { return s.key }

// Save stamps state with the current time and overwrites the slot. Failures
// are logged and otherwise ignored.
func (s *Slot) Save(ctx context.Context, state ContainerState) ContainerState {
	state.Timestamp = s.now().UnixMilli()

	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Warn("failed to encode container state", zap.Error(err))
		return state
	}
	if err := s.store.Put(ctx, s.key, data); err != nil {
		s.logger.Warn("failed to save container state", zap.Error(err))
		return state
	}

	s.logger.Debug("container state saved",
		zap.String("frontend_url", state.CurrentFrontendURL),
		zap.Bool("agent_visible", state.AgentVisible))
	return state
}

// Restore returns the saved snapshot if one exists and is no older than the
// slot's max age. A stale snapshot is deleted.
func (s *Slot) Restore(ctx context.Context) (ContainerState, bool) {
	data, err := s.store.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("failed to read container state", zap.Error(err))
		}
		return ContainerState{}, false
	}

	var state ContainerState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("failed to decode container state", zap.Error(err))
		return ContainerState{}, false
	}

	age := s.now().UnixMilli() - state.Timestamp
	if age > s.maxAge.Milliseconds() {
		s.logger.Debug("discarding stale container state", zap.Int64("age_ms", age))
		if err := s.store.Delete(ctx, s.key); err != nil {
			s.logger.Warn("failed to clear stale container state", zap.Error(err))
		}
		return ContainerState{}, false
	}

	s.logger.Debug("container state restored",
		zap.String("frontend_url", state.CurrentFrontendURL),
		zap.Bool("agent_visible", state.AgentVisible))
	return state, true
}

// Purger is implemented by stores that can drop expired rows in bulk.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunPurgeMonitor periodically drops snapshots that can no longer be
// restored. It returns when ctx is cancelled.
func RunPurgeMonitor(ctx context.Context, p Purger, maxAge, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			n, err := p.PurgeOlderThan(sweepCtx, time.Now().Add(-maxAge))
			cancel()
			if err != nil {
				logger.Warn("container state purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("purged stale container state", zap.Int64("rows", n))
			}
		}
	}
}
