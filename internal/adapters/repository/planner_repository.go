package repository

import (
	"context"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/store"
	"github.com/familyhub/core/internal/ports"
)

// plannerRepository implements ports.PlannerRepository on the document store.
type plannerRepository struct {
	store store.Store
}

// NewPlannerRepository creates a new planner repository.
func NewPlannerRepository(s store.Store) ports.PlannerRepository {
	return &plannerRepository{store: s}
}

// Get returns the planner for username. A user without a planner gets
// an empty list, not an error; planners are created lazily.
func (r *plannerRepository) Get(ctx context.Context, username string) ([]entities.PlannerEntry, error) {
	var out []entities.PlannerEntry
	err := r.store.ViewPlanner(ctx, username, func(entries []entities.PlannerEntry) error {
		out = entities.CloneEntries(entries)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []entities.PlannerEntry{}
	}
	return out, nil
}

func (r *plannerRepository) Replace(ctx context.Context, username string, entries []entities.PlannerEntry) ([]entities.PlannerEntry, error) {
	var out []entities.PlannerEntry
	err := r.store.UpdatePlanner(ctx, username, func([]entities.PlannerEntry) ([]entities.PlannerEntry, error) {
		out = entities.CloneEntries(entries)
		return entities.CloneEntries(entries), nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []entities.PlannerEntry{}
	}
	return out, nil
}

func (r *plannerRepository) Ensure(ctx context.Context, username string) error {
	return r.store.UpdatePlanner(ctx, username, func(entries []entities.PlannerEntry) ([]entities.PlannerEntry, error) {
		if entries == nil {
			return []entities.PlannerEntry{}, nil
		}
		return entries, nil
	})
}

func (r *plannerRepository) All(ctx context.Context) (map[string][]entities.PlannerEntry, error) {
	var out map[string][]entities.PlannerEntry
	err := r.store.ViewPlanners(ctx, func(planners map[string][]entities.PlannerEntry) error {
		out = planners
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
