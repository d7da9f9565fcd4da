package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
)

// FileStore keeps the whole store in memory and flushes it to a single
// JSON file on every write. Writes go through a temp file and rename
// so a crash mid-flush never leaves a torn store behind.
type FileStore struct {
	mu     sync.Mutex
	path   string
	data   document
	logger *logger.Logger

	// persist is cleared when the path turns out to be read-only, the
	// way the original file store degrades to memory-only operation.
	persist bool
}

// Open loads (or creates) the store file at path.
func Open(path string, log *logger.Logger) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		data:    emptyDocument(),
		logger:  log.WithComponent("store"),
		persist: path != "",
	}

	if path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		// Corrupt file: start from defaults rather than refuse to boot.
		s.logger.Warnw("Store file unreadable, starting from defaults", "path", path, "error", err)
		s.data = emptyDocument()
		return s, nil
	}
	s.data.normalize()

	return s, nil
}

// OpenMemory returns a store with no backing file. Used by tests and
// the demo command.
func OpenMemory(log *logger.Logger) *FileStore {
	s, _ := Open("", log)
	return s
}

func (s *FileStore) flushLocked() error {
	if !s.persist {
		return nil
	}

	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		s.persist = false
		s.logger.Warnw("Store flush failed, continuing in memory", "path", s.path, "error", err)
		return nil
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.persist = false
		s.logger.Warnw("Store rename failed, continuing in memory", "path", s.path, "error", err)
	}
	return nil
}

func (s *FileStore) ViewUsers(ctx context.Context, fn func(users []entities.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(cloneUsers(s.data.Users))
}

func (s *FileStore) UpdateUsers(ctx context.Context, fn func(users []entities.User) ([]entities.User, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(cloneUsers(s.data.Users))
	if err != nil {
		return err
	}
	s.data.Users = next
	return s.flushLocked()
}

func (s *FileStore) ViewFamilies(ctx context.Context, fn func(families []entities.Family) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(cloneFamilies(s.data.Families))
}

func (s *FileStore) UpdateFamilies(ctx context.Context, fn func(families []entities.Family) ([]entities.Family, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(cloneFamilies(s.data.Families))
	if err != nil {
		return err
	}
	s.data.Families = next
	return s.flushLocked()
}

func (s *FileStore) ViewPlanner(ctx context.Context, username string, fn func(entries []entities.PlannerEntry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(entities.CloneEntries(s.data.Planners[username]))
}

func (s *FileStore) UpdatePlanner(ctx context.Context, username string, fn func(entries []entities.PlannerEntry) ([]entities.PlannerEntry, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(entities.CloneEntries(s.data.Planners[username]))
	if err != nil {
		return err
	}
	if next == nil {
		next = []entities.PlannerEntry{}
	}
	s.data.Planners[username] = next
	return s.flushLocked()
}

func (s *FileStore) ViewWorkout(ctx context.Context, username string, fn func(sessions []entities.WorkoutSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(entities.CloneWorkouts(s.data.Workouts[username]))
}

func (s *FileStore) UpdateWorkout(ctx context.Context, username string, fn func(sessions []entities.WorkoutSession) ([]entities.WorkoutSession, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(entities.CloneWorkouts(s.data.Workouts[username]))
	if err != nil {
		return err
	}
	if next == nil {
		next = []entities.WorkoutSession{}
	}
	s.data.Workouts[username] = next
	return s.flushLocked()
}

func (s *FileStore) ViewPlanners(ctx context.Context, fn func(planners map[string][]entities.PlannerEntry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]entities.PlannerEntry, len(s.data.Planners))
	for username, entries := range s.data.Planners {
		out[username] = entities.CloneEntries(entries)
	}
	return fn(out)
}

// Close flushes a final time and releases the store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func cloneUsers(users []entities.User) []entities.User {
	return append([]entities.User(nil), users...)
}

func cloneFamilies(families []entities.Family) []entities.Family {
	out := make([]entities.Family, len(families))
	for i := range families {
		out[i] = *families[i].Clone()
	}
	return out
}
