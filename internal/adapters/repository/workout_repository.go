package repository

import (
	"context"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/store"
	"github.com/familyhub/core/internal/ports"
)

// workoutRepository implements ports.WorkoutRepository on the document store.
type workoutRepository struct {
	store store.Store
}

// NewWorkoutRepository creates a new workout repository.
func NewWorkoutRepository(s store.Store) ports.WorkoutRepository {
	return &workoutRepository{store: s}
}

// Get returns the workout log for username. A user without one gets an
// empty list, not an error; logs are created lazily like planners.
func (r *workoutRepository) Get(ctx context.Context, username string) ([]entities.WorkoutSession, error) {
	var out []entities.WorkoutSession
	err := r.store.ViewWorkout(ctx, username, func(sessions []entities.WorkoutSession) error {
		out = entities.CloneWorkouts(sessions)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []entities.WorkoutSession{}
	}
	return out, nil
}

func (r *workoutRepository) Replace(ctx context.Context, username string, sessions []entities.WorkoutSession) ([]entities.WorkoutSession, error) {
	var out []entities.WorkoutSession
	err := r.store.UpdateWorkout(ctx, username, func([]entities.WorkoutSession) ([]entities.WorkoutSession, error) {
		out = entities.CloneWorkouts(sessions)
		return entities.CloneWorkouts(sessions), nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []entities.WorkoutSession{}
	}
	return out, nil
}
