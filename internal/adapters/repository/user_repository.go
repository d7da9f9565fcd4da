package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/store"
	"github.com/familyhub/core/internal/ports"
)

// userRepository implements ports.UserRepository on the document store.
type userRepository struct {
	store store.Store
}

// NewUserRepository creates a new user repository.
func NewUserRepository(s store.Store) ports.UserRepository {
	return &userRepository{store: s}
}

func (r *userRepository) Create(ctx context.Context, user *entities.User) error {
	return r.store.UpdateUsers(ctx, func(users []entities.User) ([]entities.User, error) {
		for i := range users {
			if strings.EqualFold(users[i].Username, user.Username) {
				return nil, fmt.Errorf("%w: %s", entities.ErrUsernameTaken, user.Username)
			}
		}
		return append(users, *user), nil
	})
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	var found *entities.User
	err := r.store.ViewUsers(ctx, func(users []entities.User) error {
		for i := range users {
			if strings.EqualFold(users[i].Username, username) {
				u := users[i]
				found = &u
				return nil
			}
		}
		return entities.ErrUserNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var found *entities.User
	err := r.store.ViewUsers(ctx, func(users []entities.User) error {
		for i := range users {
			if strings.EqualFold(users[i].Email, email) {
				u := users[i]
				found = &u
				return nil
			}
		}
		return entities.ErrUserNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *userRepository) Update(ctx context.Context, username string, update ports.UserUpdate) (*entities.User, error) {
	var updated *entities.User
	err := r.store.UpdateUsers(ctx, func(users []entities.User) ([]entities.User, error) {
		for i := range users {
			if strings.EqualFold(users[i].Username, username) {
				update.Apply(&users[i])
				u := users[i]
				updated = &u
				return users, nil
			}
		}
		return nil, entities.ErrUserNotFound
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *userRepository) List(ctx context.Context) ([]*entities.User, error) {
	var out []*entities.User
	err := r.store.ViewUsers(ctx, func(users []entities.User) error {
		out = make([]*entities.User, len(users))
		for i := range users {
			u := users[i]
			out[i] = &u
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
