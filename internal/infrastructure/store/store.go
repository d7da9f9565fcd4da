// Package store provides the document store behind the directory,
// family registry and the planner and workout services. It persists
// four collections (users, families, planners, workouts) and exposes
// atomic read-modify-write per collection only; there are no
// cross-collection transactions.
package store

import (
	"context"

	"github.com/familyhub/core/internal/domain/entities"
)

// Store is the injected persistence boundary. Implementations must
// serialize updates to the same collection; a View sees a consistent
// snapshot of one collection.
type Store interface {
	ViewUsers(ctx context.Context, fn func(users []entities.User) error) error
	UpdateUsers(ctx context.Context, fn func(users []entities.User) ([]entities.User, error)) error

	ViewFamilies(ctx context.Context, fn func(families []entities.Family) error) error
	UpdateFamilies(ctx context.Context, fn func(families []entities.Family) ([]entities.Family, error)) error

	ViewPlanner(ctx context.Context, username string, fn func(entries []entities.PlannerEntry) error) error
	UpdatePlanner(ctx context.Context, username string, fn func(entries []entities.PlannerEntry) ([]entities.PlannerEntry, error)) error
	ViewPlanners(ctx context.Context, fn func(planners map[string][]entities.PlannerEntry) error) error

	ViewWorkout(ctx context.Context, username string, fn func(sessions []entities.WorkoutSession) error) error
	UpdateWorkout(ctx context.Context, username string, fn func(sessions []entities.WorkoutSession) ([]entities.WorkoutSession, error)) error

	Close() error
}

// document is the on-disk / on-database shape of the whole store.
type document struct {
	Users    []entities.User                      `json:"users"`
	Families []entities.Family                    `json:"families"`
	Planners map[string][]entities.PlannerEntry   `json:"planners"`
	Workouts map[string][]entities.WorkoutSession `json:"workouts"`
}

func emptyDocument() document {
	return document{
		Users:    []entities.User{},
		Families: []entities.Family{},
		Planners: map[string][]entities.PlannerEntry{},
		Workouts: map[string][]entities.WorkoutSession{},
	}
}

func (d *document) normalize() {
	if d.Users == nil {
		d.Users = []entities.User{}
	}
	if d.Families == nil {
		d.Families = []entities.Family{}
	}
	if d.Planners == nil {
		d.Planners = map[string][]entities.PlannerEntry{}
	}
	if d.Workouts == nil {
		d.Workouts = map[string][]entities.WorkoutSession{}
	}
}
