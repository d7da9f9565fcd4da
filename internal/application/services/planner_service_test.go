package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/familyhub/core/internal/domain/entities"
)

func TestReplacePlannerRoundTrip(t *testing.T) {
	directory, _, planners := newTestServices(t)
	ctx := context.Background()

	mustCreateUser(t, directory, "alice")

	entries := []entities.PlannerEntry{
		{Type: entities.EntryTypeTask, Title: "Grocery run", StartDate: "2026-09-02"},
		{Type: entities.EntryTypeEvent, Title: "Game night", StartDate: "2026-09-05", StartTime: "19:00", EndTime: "21:00"},
	}
	saved, err := planners.ReplacePlanner(ctx, "alice", entries)
	if err != nil {
		t.Fatal(err)
	}

	if len(saved) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(saved))
	}
	for _, e := range saved {
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Errorf("entry %q missing server-assigned fields", e.Title)
		}
		if e.Priority != entities.PriorityMedium {
			t.Errorf("entry %q should default to medium priority, got %s", e.Title, e.Priority)
		}
	}

	loaded, err := planners.GetPlanner(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("round trip lost entries: %d", len(loaded))
	}
}

func TestReplacePlannerValidation(t *testing.T) {
	directory, _, planners := newTestServices(t)
	ctx := context.Background()

	mustCreateUser(t, directory, "alice")

	tests := []struct {
		name    string
		entries []entities.PlannerEntry
	}{
		{"missing title", []entities.PlannerEntry{
			{Type: entities.EntryTypeTask, StartDate: "2026-09-02"},
		}},
		{"unknown type", []entities.PlannerEntry{
			{Type: entities.EntryType("meeting"), Title: "x", StartDate: "2026-09-02"},
		}},
		{"duplicate id", []entities.PlannerEntry{
			{ID: "entry_1", Type: entities.EntryTypeTask, Title: "a", StartDate: "2026-09-02"},
			{ID: "entry_1", Type: entities.EntryTypeTask, Title: "b", StartDate: "2026-09-02"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := planners.ReplacePlanner(ctx, "alice", tt.entries); !errors.Is(err, entities.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}

	// A rejected replace leaves the stored document untouched.
	loaded, err := planners.GetPlanner(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Errorf("rejected replace must not persist, found %d entries", len(loaded))
	}
}

func TestReplacePlannerUnknownUser(t *testing.T) {
	_, _, planners := newTestServices(t)

	if _, err := planners.ReplacePlanner(context.Background(), "ghost", nil); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := planners.GetPlanner(context.Background(), "ghost"); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestShareCodes(t *testing.T) {
	directory, _, planners := newTestServices(t)
	ctx := context.Background()

	mustCreateUser(t, directory, "alice")
	mustCreateUser(t, directory, "bob")

	// A non-empty shareCode the entry does not own is a share request;
	// the server issues the real code.
	saved, err := planners.ReplacePlanner(ctx, "alice", []entities.PlannerEntry{
		{Type: entities.EntryTypeTask, Title: "Shared task", StartDate: "2026-09-02", ShareCode: "please"},
		{Type: entities.EntryTypeTask, Title: "Private task", StartDate: "2026-09-02"},
	})
	if err != nil {
		t.Fatal(err)
	}

	var shared, private entities.PlannerEntry
	for _, e := range saved {
		switch e.Title {
		case "Shared task":
			shared = e
		case "Private task":
			private = e
		}
	}
	if shared.ShareCode == "" || shared.ShareCode == "please" {
		t.Fatalf("server must issue the share code, got %q", shared.ShareCode)
	}
	if len(shared.ShareCode) != codeLength {
		t.Errorf("share code %q has length %d, want %d", shared.ShareCode, len(shared.ShareCode), codeLength)
	}
	for _, ch := range shared.ShareCode {
		if !strings.ContainsRune(codeAlphabet, ch) {
			t.Errorf("share code %q contains %q outside the alphabet", shared.ShareCode, ch)
		}
	}
	if private.ShareCode != "" {
		t.Errorf("entry without a share request must stay private, got %q", private.ShareCode)
	}

	// Resubmitting with the issued code keeps it stable.
	resaved, err := planners.ReplacePlanner(ctx, "alice", saved)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range resaved {
		if e.Title == "Shared task" && e.ShareCode != shared.ShareCode {
			t.Errorf("share code changed on resubmit: %q -> %q", shared.ShareCode, e.ShareCode)
		}
	}

	// Anyone can resolve the code; lookup is case-insensitive.
	resolved, err := planners.GetEntryByShareCode(ctx, strings.ToLower(shared.ShareCode))
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Owner != "alice" || resolved.Entry.ID != shared.ID {
		t.Errorf("resolved wrong entry: %+v", resolved)
	}

	if _, err := planners.GetEntryByShareCode(ctx, "ZZZZZZ"); !errors.Is(err, entities.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}

	// Dropping the code on resubmit makes the entry private again.
	unshared := make([]entities.PlannerEntry, len(resaved))
	copy(unshared, resaved)
	for i := range unshared {
		unshared[i].ShareCode = ""
	}
	if _, err := planners.ReplacePlanner(ctx, "alice", unshared); err != nil {
		t.Fatal(err)
	}
	if _, err := planners.GetEntryByShareCode(ctx, shared.ShareCode); !errors.Is(err, entities.ErrEntryNotFound) {
		t.Errorf("revoked code must stop resolving, got %v", err)
	}
}
