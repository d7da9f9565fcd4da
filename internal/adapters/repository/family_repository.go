package repository

import (
	"context"
	"strings"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/store"
	"github.com/familyhub/core/internal/ports"
)

// familyRepository implements ports.FamilyRepository on the document store.
type familyRepository struct {
	store store.Store
}

// NewFamilyRepository creates a new family repository.
func NewFamilyRepository(s store.Store) ports.FamilyRepository {
	return &familyRepository{store: s}
}

func (r *familyRepository) Create(ctx context.Context, family *entities.Family) error {
	return r.store.UpdateFamilies(ctx, func(families []entities.Family) ([]entities.Family, error) {
		return append(families, *family.Clone()), nil
	})
}

func (r *familyRepository) GetByID(ctx context.Context, id string) (*entities.Family, error) {
	var found *entities.Family
	err := r.store.ViewFamilies(ctx, func(families []entities.Family) error {
		for i := range families {
			if families[i].ID == id {
				found = families[i].Clone()
				return nil
			}
		}
		return entities.ErrFamilyNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *familyRepository) GetByCode(ctx context.Context, code string) (*entities.Family, error) {
	var found *entities.Family
	err := r.store.ViewFamilies(ctx, func(families []entities.Family) error {
		for i := range families {
			if strings.EqualFold(families[i].Code, code) {
				found = families[i].Clone()
				return nil
			}
		}
		return entities.ErrFamilyNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *familyRepository) List(ctx context.Context) ([]*entities.Family, error) {
	var out []*entities.Family
	err := r.store.ViewFamilies(ctx, func(families []entities.Family) error {
		out = make([]*entities.Family, len(families))
		for i := range families {
			out[i] = families[i].Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *familyRepository) ListByMember(ctx context.Context, username string) ([]*entities.Family, error) {
	var out []*entities.Family
	err := r.store.ViewFamilies(ctx, func(families []entities.Family) error {
		for i := range families {
			if families[i].HasMember(username) {
				out = append(out, families[i].Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *familyRepository) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.store.ViewFamilies(ctx, func(families []entities.Family) error {
		codes = make([]string, 0, len(families))
		for i := range families {
			codes = append(codes, families[i].Code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *familyRepository) Replace(ctx context.Context, family *entities.Family) (*entities.Family, error) {
	var replaced *entities.Family
	err := r.store.UpdateFamilies(ctx, func(families []entities.Family) ([]entities.Family, error) {
		for i := range families {
			if families[i].ID == family.ID {
				families[i] = *family.Clone()
				replaced = families[i].Clone()
				return families, nil
			}
		}
		return nil, entities.ErrFamilyNotFound
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

func (r *familyRepository) Mutate(ctx context.Context, id string, fn func(*entities.Family) error) (*entities.Family, error) {
	var mutated *entities.Family
	err := r.store.UpdateFamilies(ctx, func(families []entities.Family) ([]entities.Family, error) {
		for i := range families {
			if families[i].ID == id {
				draft := families[i].Clone()
				if err := fn(draft); err != nil {
					return nil, err
				}
				families[i] = *draft
				mutated = draft.Clone()
				return families, nil
			}
		}
		return nil, entities.ErrFamilyNotFound
	})
	if err != nil {
		return nil, err
	}
	return mutated, nil
}
