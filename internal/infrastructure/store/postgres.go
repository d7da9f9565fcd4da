package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/config"
	"github.com/familyhub/core/internal/infrastructure/logger"
)

const (
	collectionUsers    = "users"
	collectionFamilies = "families"
	collectionPlanners = "planners"
	collectionWorkouts = "workouts"
)

// PostgresStore keeps each collection as a single jsonb row in a
// documents table. Read-modify-write runs inside a transaction with
// SELECT FOR UPDATE, which gives the same per-collection serialization
// as the file store's mutex.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// OpenPostgres connects to the database and ensures the collection
// rows exist.
func OpenPostgres(cfg config.DatabaseConfig, log *logger.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := &PostgresStore{db: db, logger: log.WithComponent("store")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.seedCollections(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) seedCollections(ctx context.Context) error {
	empty := emptyDocument()
	seeds := map[string]interface{}{
		collectionUsers:    empty.Users,
		collectionFamilies: empty.Families,
		collectionPlanners: empty.Planners,
		collectionWorkouts: empty.Workouts,
	}

	for name, value := range seeds {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %s seed: %w", name, err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (collection, body) VALUES ($1, $2)
			 ON CONFLICT (collection) DO NOTHING`, name, raw)
		if err != nil {
			return fmt.Errorf("failed to seed %s collection: %w", name, err)
		}
	}
	return nil
}

func (s *PostgresStore) view(ctx context.Context, collection string, out interface{}) error {
	var raw []byte
	err := s.db.GetContext(ctx, &raw,
		`SELECT body FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return fmt.Errorf("failed to read %s collection: %w", collection, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s collection: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) update(ctx context.Context, collection string, fn func(raw []byte) ([]byte, error)) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.GetContext(ctx, &raw,
		`SELECT body FROM documents WHERE collection = $1 FOR UPDATE`, collection)
	if err != nil {
		return fmt.Errorf("failed to lock %s collection: %w", collection, err)
	}

	next, err := fn(raw)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET body = $2, updated_at = NOW() WHERE collection = $1`,
		collection, next)
	if err != nil {
		return fmt.Errorf("failed to write %s collection: %w", collection, err)
	}

	return tx.Commit()
}

func (s *PostgresStore) ViewUsers(ctx context.Context, fn func(users []entities.User) error) error {
	var users []entities.User
	if err := s.view(ctx, collectionUsers, &users); err != nil {
		return err
	}
	return fn(users)
}

func (s *PostgresStore) UpdateUsers(ctx context.Context, fn func(users []entities.User) ([]entities.User, error)) error {
	return s.update(ctx, collectionUsers, func(raw []byte) ([]byte, error) {
		var users []entities.User
		if err := json.Unmarshal(raw, &users); err != nil {
			return nil, fmt.Errorf("failed to decode users: %w", err)
		}
		next, err := fn(users)
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []entities.User{}
		}
		return json.Marshal(next)
	})
}

func (s *PostgresStore) ViewFamilies(ctx context.Context, fn func(families []entities.Family) error) error {
	var families []entities.Family
	if err := s.view(ctx, collectionFamilies, &families); err != nil {
		return err
	}
	return fn(families)
}

func (s *PostgresStore) UpdateFamilies(ctx context.Context, fn func(families []entities.Family) ([]entities.Family, error)) error {
	return s.update(ctx, collectionFamilies, func(raw []byte) ([]byte, error) {
		var families []entities.Family
		if err := json.Unmarshal(raw, &families); err != nil {
			return nil, fmt.Errorf("failed to decode families: %w", err)
		}
		next, err := fn(families)
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []entities.Family{}
		}
		return json.Marshal(next)
	})
}

func (s *PostgresStore) ViewPlanner(ctx context.Context, username string, fn func(entries []entities.PlannerEntry) error) error {
	var planners map[string][]entities.PlannerEntry
	if err := s.view(ctx, collectionPlanners, &planners); err != nil {
		return err
	}
	return fn(planners[username])
}

func (s *PostgresStore) UpdatePlanner(ctx context.Context, username string, fn func(entries []entities.PlannerEntry) ([]entities.PlannerEntry, error)) error {
	return s.update(ctx, collectionPlanners, func(raw []byte) ([]byte, error) {
		var planners map[string][]entities.PlannerEntry
		if err := json.Unmarshal(raw, &planners); err != nil {
			return nil, fmt.Errorf("failed to decode planners: %w", err)
		}
		if planners == nil {
			planners = map[string][]entities.PlannerEntry{}
		}
		next, err := fn(planners[username])
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []entities.PlannerEntry{}
		}
		planners[username] = next
		return json.Marshal(planners)
	})
}

func (s *PostgresStore) ViewPlanners(ctx context.Context, fn func(planners map[string][]entities.PlannerEntry) error) error {
	var planners map[string][]entities.PlannerEntry
	if err := s.view(ctx, collectionPlanners, &planners); err != nil {
		return err
	}
	if planners == nil {
		planners = map[string][]entities.PlannerEntry{}
	}
	return fn(planners)
}

func (s *PostgresStore) ViewWorkout(ctx context.Context, username string, fn func(sessions []entities.WorkoutSession) error) error {
	var workouts map[string][]entities.WorkoutSession
	if err := s.view(ctx, collectionWorkouts, &workouts); err != nil {
		return err
	}
	return fn(workouts[username])
}

func (s *PostgresStore) UpdateWorkout(ctx context.Context, username string, fn func(sessions []entities.WorkoutSession) ([]entities.WorkoutSession, error)) error {
	return s.update(ctx, collectionWorkouts, func(raw []byte) ([]byte, error) {
		var workouts map[string][]entities.WorkoutSession
		if err := json.Unmarshal(raw, &workouts); err != nil {
			return nil, fmt.Errorf("failed to decode workouts: %w", err)
		}
		if workouts == nil {
			workouts = map[string][]entities.WorkoutSession{}
		}
		next, err := fn(workouts[username])
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []entities.WorkoutSession{}
		}
		workouts[username] = next
		return json.Marshal(workouts)
	})
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
