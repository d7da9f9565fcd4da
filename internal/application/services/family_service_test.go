package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/familyhub/core/internal/adapters/repository"
	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/infrastructure/store"
	"github.com/familyhub/core/internal/ports"
)

func newTestServices(t *testing.T) (*DirectoryService, *FamilyService, *PlannerService) {
	t.Helper()
	st := store.OpenMemory(logger.NewNop())
	t.Cleanup(func() { st.Close() })

	userRepo := repository.NewUserRepository(st)
	familyRepo := repository.NewFamilyRepository(st)
	plannerRepo := repository.NewPlannerRepository(st)

	log := logger.NewNop()
	directory := NewDirectoryService(userRepo, plannerRepo, testJWTConfig(), log)
	families := NewFamilyService(familyRepo, userRepo, nil, log)
	planners := NewPlannerService(plannerRepo, userRepo, nil, log)
	return directory, families, planners
}

func mustCreateUser(t *testing.T, directory *DirectoryService, username string) *entities.User {
	t.Helper()
	user, err := directory.CreateUser(context.Background(), ports.CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret-pass",
	})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func TestCreateFamilyCode(t *testing.T) {
	directory, families, _ := newTestServices(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		owner := mustCreateUser(t, directory, "owner"+strings.Repeat("x", i+1))
		family, err := families.CreateFamily(ctx, "Family", owner.Username)
		if err != nil {
			t.Fatalf("create family failed: %v", err)
		}

		if len(family.Code) != codeLength {
			t.Errorf("code %q has length %d, want %d", family.Code, len(family.Code), codeLength)
		}
		for _, ch := range family.Code {
			if !strings.ContainsRune(codeAlphabet, ch) {
				t.Errorf("code %q contains %q outside the alphabet", family.Code, ch)
			}
		}
		if seen[family.Code] {
			t.Errorf("duplicate code issued: %s", family.Code)
		}
		seen[family.Code] = true
	}
}

func TestCreateFamilySetsOwner(t *testing.T) {
	directory, families, _ := newTestServices(t)
	ctx := context.Background()

	owner := mustCreateUser(t, directory, "alice")
	family, err := families.CreateFamily(ctx, "The As", owner.Username)
	if err != nil {
		t.Fatal(err)
	}

	if len(family.Members) != 1 || family.Members[0].Role != entities.UserRoleOwner {
		t.Errorf("expected a single owner member, got %+v", family.Members)
	}

	// Directory back-reference side effect.
	refreshed, err := directory.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.FamilyID == nil || *refreshed.FamilyID != family.ID {
		t.Errorf("owner familyId not set, got %v", refreshed.FamilyID)
	}
	if refreshed.Role != entities.UserRoleOwner {
		t.Errorf("owner role not set, got %s", refreshed.Role)
	}
}

func TestJoinByCodeIdempotent(t *testing.T) {
	directory, families, _ := newTestServices(t)
	ctx := context.Background()

	owner := mustCreateUser(t, directory, "alice")
	mustCreateUser(t, directory, "bob")
	family, err := families.CreateFamily(ctx, "The As", owner.Username)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		joined, user, err := families.JoinByCode(ctx, "bob", entities.UserRoleAdult, family.Code)
		if err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
		count := 0
		for _, m := range joined.Members {
			if m.Username == "bob" {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("join %d left %d roster entries for bob", i, count)
		}
		if user.FamilyID == nil || *user.FamilyID != family.ID {
			t.Errorf("join %d did not set bob's familyId", i)
		}
	}
}

func TestJoinByCodeUnknownCode(t *testing.T) {
	directory, families, _ := newTestServices(t)
	mustCreateUser(t, directory, "bob")

	_, _, err := families.JoinByCode(context.Background(), "bob", entities.UserRoleAdult, "ZZZZZZ")
	if !errors.Is(err, entities.ErrFamilyNotFound) {
		t.Errorf("expected ErrFamilyNotFound, got %v", err)
	}
}

func TestRegenerateCode(t *testing.T) {
	directory, families, _ := newTestServices(t)
	ctx := context.Background()

	owner := mustCreateUser(t, directory, "alice")
	family, err := families.CreateFamily(ctx, "The As", owner.Username)
	if err != nil {
		t.Fatal(err)
	}
	oldCode := family.Code

	regenerated, err := families.RegenerateCode(ctx, family.ID)
	if err != nil {
		t.Fatal(err)
	}

	if regenerated.Code == oldCode {
		t.Error("regeneration must change the code")
	}
	if regenerated.RegeneratedAt == nil {
		t.Error("regeneration must stamp regeneratedAt")
	}

	// Old code is dead immediately.
	if _, err := families.GetByCode(ctx, oldCode); !errors.Is(err, entities.ErrFamilyNotFound) {
		t.Errorf("old code must resolve to NotFound, got %v", err)
	}
	if _, err := families.GetByCode(ctx, regenerated.Code); err != nil {
		t.Errorf("new code must resolve, got %v", err)
	}

	// Double regeneration still leaves exactly one valid code.
	again, err := families.RegenerateCode(ctx, family.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := families.GetByCode(ctx, regenerated.Code); !errors.Is(err, entities.ErrFamilyNotFound) {
		t.Error("intermediate code must be invalid after second regeneration")
	}
	if _, err := families.GetByCode(ctx, again.Code); err != nil {
		t.Errorf("latest code must resolve, got %v", err)
	}
}

func TestReplaceFamily(t *testing.T) {
	directory, families, _ := newTestServices(t)
	ctx := context.Background()

	owner := mustCreateUser(t, directory, "alice")
	family, err := families.CreateFamily(ctx, "The As", owner.Username)
	if err != nil {
		t.Fatal(err)
	}

	draft := family.Clone()
	draft.Name = "The Renamed"
	draft.Code = "HACKED"
	draft.Chat = append(draft.Chat, entities.ChatMessage{
		ID: entities.NewChatMessageID(), Username: "alice", Message: "hi",
	})

	replaced, err := families.ReplaceFamily(ctx, draft)
	if err != nil {
		t.Fatal(err)
	}

	if replaced.Name != "The Renamed" || len(replaced.Chat) != 1 {
		t.Errorf("replace did not apply the submitted content: %+v", replaced)
	}
	if replaced.Code != family.Code {
		t.Errorf("replace must preserve the stored invite code, got %q", replaced.Code)
	}

	// Unknown id fails with NotFound.
	missing := family.Clone()
	missing.ID = "fam_missing"
	if _, err := families.ReplaceFamily(ctx, missing); !errors.Is(err, entities.ErrFamilyNotFound) {
		t.Errorf("expected ErrFamilyNotFound, got %v", err)
	}

	// Invalid document fails with validation, not coercion.
	invalid := family.Clone()
	invalid.Members = nil
	if _, err := families.ReplaceFamily(ctx, invalid); !errors.Is(err, entities.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestReplaceFamilyReconcilesRoster(t *testing.T) {
	directory, families, _ := newTestServices(t)
	ctx := context.Background()

	owner := mustCreateUser(t, directory, "alice")
	mustCreateUser(t, directory, "bob")
	family, err := families.CreateFamily(ctx, "The As", owner.Username)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := families.JoinByCode(ctx, "bob", entities.UserRoleAdult, family.Code); err != nil {
		t.Fatal(err)
	}

	// Bob leaves via whole-document replace.
	current, err := families.GetByID(ctx, family.ID)
	if err != nil {
		t.Fatal(err)
	}
	draft := current.Clone()
	draft.Members = []entities.FamilyMember{{Username: "alice", Role: entities.UserRoleOwner}}
	if _, err := families.ReplaceFamily(ctx, draft); err != nil {
		t.Fatal(err)
	}

	bob, err := directory.FindByUsername(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if bob.FamilyID != nil {
		t.Error("removed member must have familyId cleared")
	}
	if bob.Role != entities.UserRoleSolo {
		t.Errorf("removed member must fall back to solo, got %s", bob.Role)
	}
}

func TestUpdateMemberRole(t *testing.T) {
	directory, families, _ := newTestServices(t)
	ctx := context.Background()

	owner := mustCreateUser(t, directory, "alice")
	mustCreateUser(t, directory, "bob")
	family, err := families.CreateFamily(ctx, "The As", owner.Username)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := families.JoinByCode(ctx, "bob", entities.UserRoleAdult, family.Code); err != nil {
		t.Fatal(err)
	}

	updated, user, err := families.UpdateMemberRole(ctx, family.ID, "bob", entities.UserRoleKid)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Member("bob").Role != entities.UserRoleKid {
		t.Error("roster role not updated")
	}
	if user.Role != entities.UserRoleKid {
		t.Error("directory role not updated")
	}

	// Ownership does not move through this path.
	if _, _, err := families.UpdateMemberRole(ctx, family.ID, "alice", entities.UserRoleAdult); !errors.Is(err, entities.ErrValidation) {
		t.Errorf("expected ErrValidation demoting the owner, got %v", err)
	}
	if _, _, err := families.UpdateMemberRole(ctx, family.ID, "bob", entities.UserRoleOwner); !errors.Is(err, entities.ErrValidation) {
		t.Errorf("expected ErrValidation promoting to owner, got %v", err)
	}
}
