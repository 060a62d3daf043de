package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"readingflow/internal/metrics"
	"readingflow/internal/models"
	"readingflow/internal/storage"
)

// StateKey is the storage key the whole state is persisted under
const StateKey = "leituraflow-data"

// Store holds the in-memory state and persists it as one JSON blob.
// It is not safe for concurrent use; Tracker serialises access.
type Store struct {
	backend storage.Storage
	state   *models.AppState
	logger  *zap.Logger
}

// NewStore creates a store holding the default state
func NewStore(backend storage.Storage, logger *zap.Logger) *Store {
	return &Store{
		backend: backend,
		state:   models.DefaultState(),
		logger:  logger,
	}
}

// State returns the live state
func (s *Store) State() *models.AppState {
	return s.state
}

// Replace swaps in a new state
func (s *Store) Replace(state *models.AppState) {
	s.state = state
}

// Load restores the state from the backend. A missing or unparseable blob
// leaves the default state in place; only backend failures are returned.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.backend.Get(ctx, StateKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Info("No saved state found, starting fresh")
		s.state = models.DefaultState()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	var state models.AppState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("Saved state is corrupt, starting fresh",
			zap.Error(err),
			zap.Int("bytes", len(data)),
		)
		s.state = models.DefaultState()
		return nil
	}

	normalize(&state)
	s.state = &state

	s.logger.Info("State loaded",
		zap.Int("books", len(state.Books)),
		zap.Int("readings", len(state.Readings)),
		zap.Int("daily_goal", state.DailyGoal),
	)
	return nil
}

// Save writes the whole state to the backend, replacing the previous blob
func (s *Store) Save(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PersistDuration.Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := s.backend.Put(ctx, StateKey, data); err != nil {
		s.logger.Error("Failed to save state", zap.Error(err))
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Clear deletes the persisted blob and resets to the default state.
// The in-memory state is left alone when the delete fails.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, StateKey); err != nil {
		s.logger.Error("Failed to delete state", zap.Error(err))
		return fmt.Errorf("failed to delete state: %w", err)
	}
	s.state = models.DefaultState()
	return nil
}

// normalize fills gaps a hand-edited or older blob may have
func normalize(state *models.AppState) {
	if state.Books == nil {
		state.Books = []models.Book{}
	}
	if state.Readings == nil {
		state.Readings = []models.ReadingSession{}
	}
	if state.Achievements == nil {
		state.Achievements = []string{}
	}
	if state.DailyGoal <= 0 {
		state.DailyGoal = models.DefaultDailyGoal
	}
}
