package services

import (
	"context"
	"errors"
	"testing"

	"github.com/familyhub/core/internal/adapters/repository"
	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/infrastructure/store"
)

func newWorkoutTestServices(t *testing.T) (*DirectoryService, *WorkoutService) {
	t.Helper()
	st := store.OpenMemory(logger.NewNop())
	t.Cleanup(func() { st.Close() })

	userRepo := repository.NewUserRepository(st)
	plannerRepo := repository.NewPlannerRepository(st)
	workoutRepo := repository.NewWorkoutRepository(st)

	log := logger.NewNop()
	directory := NewDirectoryService(userRepo, plannerRepo, testJWTConfig(), log)
	workouts := NewWorkoutService(workoutRepo, userRepo, nil, log)
	return directory, workouts
}

func TestReplaceWorkoutRoundTrip(t *testing.T) {
	directory, workouts := newWorkoutTestServices(t)
	ctx := context.Background()

	mustCreateUser(t, directory, "alice")

	saved, err := workouts.ReplaceWorkout(ctx, "alice", []entities.WorkoutSession{
		{Title: "Push day", Day: "monday", Exercises: []entities.Exercise{
			{Name: "Bench press", Sets: 4, Reps: 8, Weight: "60kg"},
			{Name: "Overhead press", Sets: 3, Reps: 10},
		}},
		{Title: "Morning run"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(saved) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(saved))
	}
	for _, s := range saved {
		if s.ID == "" || s.CreatedAt.IsZero() {
			t.Errorf("session %q missing server-assigned fields", s.Title)
		}
	}

	loaded, err := workouts.GetWorkout(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 || len(loaded[0].Exercises) != 2 {
		t.Errorf("round trip lost data: %+v", loaded)
	}
}

func TestGetWorkoutEmpty(t *testing.T) {
	directory, workouts := newWorkoutTestServices(t)

	mustCreateUser(t, directory, "alice")

	loaded, err := workouts.GetWorkout(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || len(loaded) != 0 {
		t.Errorf("user without a log must read an empty list, got %+v", loaded)
	}
}

func TestReplaceWorkoutUnknownUser(t *testing.T) {
	_, workouts := newWorkoutTestServices(t)

	if _, err := workouts.ReplaceWorkout(context.Background(), "ghost", nil); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := workouts.GetWorkout(context.Background(), "ghost"); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestReplaceWorkoutValidation(t *testing.T) {
	directory, workouts := newWorkoutTestServices(t)
	ctx := context.Background()

	mustCreateUser(t, directory, "alice")

	tests := []struct {
		name     string
		sessions []entities.WorkoutSession
	}{
		{"missing title", []entities.WorkoutSession{{Day: "monday"}}},
		{"unnamed exercise", []entities.WorkoutSession{
			{Title: "Push day", Exercises: []entities.Exercise{{Sets: 3}}},
		}},
		{"duplicate id", []entities.WorkoutSession{
			{ID: "workout_1", Title: "a"},
			{ID: "workout_1", Title: "b"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := workouts.ReplaceWorkout(ctx, "alice", tt.sessions); !errors.Is(err, entities.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}

	loaded, err := workouts.GetWorkout(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Errorf("rejected replace must not persist, found %d sessions", len(loaded))
	}
}
