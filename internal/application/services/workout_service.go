package services

import (
	"context"
	"fmt"
	"time"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/ports"
	"github.com/familyhub/core/internal/queue"
)

// WorkoutService owns one workout log per user. Same wire contract as
// the planner: the whole list is replaced at once.
type WorkoutService struct {
	workoutRepo ports.WorkoutRepository
	userRepo    ports.UserRepository
	publisher   *queue.Publisher
	logger      *logger.Logger
}

// NewWorkoutService creates a new workout service. publisher may be
// nil when no broker is configured.
func NewWorkoutService(workoutRepo ports.WorkoutRepository, userRepo ports.UserRepository, publisher *queue.Publisher, logger *logger.Logger) *WorkoutService {
	return &WorkoutService{
		workoutRepo: workoutRepo,
		userRepo:    userRepo,
		publisher:   publisher,
		logger:      logger,
	}
}

// GetWorkout returns the user's workout sessions, empty list if none yet.
func (s *WorkoutService) GetWorkout(ctx context.Context, username string) ([]entities.WorkoutSession, error) {
	if _, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	}
	return s.workoutRepo.Get(ctx, username)
}

// ReplaceWorkout overwrites the user's workout log with sessions.
// Every session is validated, never coerced; missing ids and creation
// times are assigned server-side.
func (s *WorkoutService) ReplaceWorkout(ctx context.Context, username string, sessions []entities.WorkoutSession) ([]entities.WorkoutSession, error) {
	if _, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	}

	next := entities.CloneWorkouts(sessions)
	seen := map[string]bool{}
	for i := range next {
		if next[i].ID == "" {
			next[i].ID = entities.NewWorkoutID()
		}
		if next[i].CreatedAt.IsZero() {
			next[i].CreatedAt = time.Now().UTC()
		}
		if err := next[i].Validate(); err != nil {
			return nil, err
		}
		if seen[next[i].ID] {
			return nil, fmt.Errorf("%w: duplicate workout id %s", entities.ErrValidation, next[i].ID)
		}
		seen[next[i].ID] = true
	}

	replaced, err := s.workoutRepo.Replace(ctx, username, next)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, queue.DocumentChangedEvent{
		Collection: "workouts",
		Key:        username,
		Action:     queue.ActionReplaced,
	})
	s.logger.Infow("Workout log replaced", "username", username, "sessions", len(replaced))
	return replaced, nil
}
