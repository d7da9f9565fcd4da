package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "familyhub.json")
	ctx := context.Background()

	st, err := Open(path, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	err = st.UpdateUsers(ctx, func(users []entities.User) ([]entities.User, error) {
		return append(users, entities.User{ID: "user_1", Username: "alice"}), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	err = st.UpdatePlanner(ctx, "alice", func(entries []entities.PlannerEntry) ([]entities.PlannerEntry, error) {
		return append(entries, entities.PlannerEntry{ID: "entry_1", Title: "Groceries"}), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	// A fresh store over the same file sees the flushed state.
	reopened, err := Open(path, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	err = reopened.ViewUsers(ctx, func(users []entities.User) error {
		if len(users) != 1 || users[0].Username != "alice" {
			t.Errorf("unexpected users after reopen: %+v", users)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	err = reopened.ViewPlanner(ctx, "alice", func(entries []entities.PlannerEntry) error {
		if len(entries) != 1 || entries[0].Title != "Groceries" {
			t.Errorf("unexpected planner after reopen: %+v", entries)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "familyhub.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := Open(path, logger.NewNop())
	if err != nil {
		t.Fatalf("corrupt file must not block startup: %v", err)
	}
	defer st.Close()

	err = st.ViewUsers(context.Background(), func(users []entities.User) error {
		if len(users) != 0 {
			t.Errorf("expected empty defaults, got %+v", users)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFileStoreUpdateIsolation(t *testing.T) {
	st := OpenMemory(logger.NewNop())
	defer st.Close()
	ctx := context.Background()

	err := st.UpdateUsers(ctx, func(users []entities.User) ([]entities.User, error) {
		return append(users, entities.User{ID: "user_1", Username: "alice"}), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the slice handed to a view must not leak into the store.
	_ = st.ViewUsers(ctx, func(users []entities.User) error {
		users[0].Username = "mallory"
		return nil
	})
	_ = st.ViewUsers(ctx, func(users []entities.User) error {
		if users[0].Username != "alice" {
			t.Errorf("view mutation leaked into the store: %q", users[0].Username)
		}
		return nil
	})
}

func TestFileStoreUpdateError(t *testing.T) {
	st := OpenMemory(logger.NewNop())
	defer st.Close()
	ctx := context.Background()

	wantErr := os.ErrPermission
	err := st.UpdateUsers(ctx, func(users []entities.User) ([]entities.User, error) {
		return append(users, entities.User{Username: "alice"}), wantErr
	})
	if err != wantErr {
		t.Fatalf("expected the closure error back, got %v", err)
	}

	_ = st.ViewUsers(ctx, func(users []entities.User) error {
		if len(users) != 0 {
			t.Errorf("failed update must not persist, got %+v", users)
		}
		return nil
	})
}

func TestFileStorePlannerNil(t *testing.T) {
	st := OpenMemory(logger.NewNop())
	defer st.Close()

	err := st.ViewPlanner(context.Background(), "nobody", func(entries []entities.PlannerEntry) error {
		if len(entries) != 0 {
			t.Errorf("expected no entries for an unknown planner, got %+v", entries)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// A closure returning nil persists an empty document, not a nil one.
	if err := st.UpdatePlanner(context.Background(), "alice", func([]entities.PlannerEntry) ([]entities.PlannerEntry, error) {
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}
	_ = st.ViewPlanners(context.Background(), func(planners map[string][]entities.PlannerEntry) error {
		if _, ok := planners["alice"]; !ok {
			t.Error("seeded planner missing from the full view")
		}
		return nil
	})
}
