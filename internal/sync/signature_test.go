package sync

import (
	"testing"
	"time"

	"github.com/familyhub/core/internal/domain/entities"
)

func testFamily() *entities.Family {
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return &entities.Family{
		ID:        "fam_1",
		Name:      "The Hashes",
		Code:      "ABC234",
		Owner:     "alice",
		CreatedAt: at,
		Members: []entities.FamilyMember{
			{Username: "alice", Role: entities.UserRoleOwner},
			{Username: "bob", Role: entities.UserRoleAdult},
		},
		Chat: []entities.ChatMessage{
			{ID: "chat_1", Username: "alice", Message: "hi", CreatedAt: at},
			{ID: "chat_2", Username: "bob", Message: "hello", CreatedAt: at.Add(time.Minute)},
		},
	}
}

func TestFamilySignatureOrderInsensitive(t *testing.T) {
	a := testFamily()

	b := testFamily()
	b.Members[0], b.Members[1] = b.Members[1], b.Members[0]
	b.Chat[0], b.Chat[1] = b.Chat[1], b.Chat[0]

	if FamilySignature(a) != FamilySignature(b) {
		t.Error("same logical content in different list order must hash equal")
	}
}

func TestFamilySignatureContentSensitive(t *testing.T) {
	base := FamilySignature(testFamily())

	tests := []struct {
		name   string
		mutate func(*entities.Family)
	}{
		{"name change", func(f *entities.Family) { f.Name = "Renamed" }},
		{"code change", func(f *entities.Family) { f.Code = "XYZ789" }},
		{"member role change", func(f *entities.Family) { f.Members[1].Role = entities.UserRoleKid }},
		{"chat append", func(f *entities.Family) {
			f.Chat = append(f.Chat, entities.ChatMessage{ID: "chat_3", Username: "bob", Message: "!", CreatedAt: time.Now()})
		}},
		{"chat message edit", func(f *entities.Family) { f.Chat[0].Message = "edited" }},
		{"reminder added", func(f *entities.Family) {
			f.Reminders = append(f.Reminders, entities.Reminder{ID: "rem_1", Title: "milk", CreatedAt: time.Now()})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testFamily()
			tt.mutate(f)
			if FamilySignature(f) == base {
				t.Error("content change did not change the signature")
			}
		})
	}
}

func TestFamilySignatureIgnoresBookkeeping(t *testing.T) {
	a := testFamily()
	b := testFamily()
	now := time.Now()
	b.CreatedAt = now
	b.RegeneratedAt = &now

	if FamilySignature(a) != FamilySignature(b) {
		t.Error("document-level timestamps must not affect the signature")
	}
}

func TestFamilySignatureChatSameSecond(t *testing.T) {
	// Two messages in the same instant sort by id, so both orderings
	// hash identically.
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	a := testFamily()
	a.Chat = []entities.ChatMessage{
		{ID: "chat_a", Username: "alice", Message: "first", CreatedAt: at},
		{ID: "chat_b", Username: "bob", Message: "second", CreatedAt: at},
	}
	b := testFamily()
	b.Chat = []entities.ChatMessage{a.Chat[1], a.Chat[0]}

	if FamilySignature(a) != FamilySignature(b) {
		t.Error("id tie-break must make same-second chat order-insensitive")
	}
}

func TestPlannerSignature(t *testing.T) {
	entries := []entities.PlannerEntry{
		{ID: "entry_1", Type: entities.EntryTypeTask, Title: "a", StartDate: "2026-09-01", StartTime: "09:00"},
		{ID: "entry_2", Type: entities.EntryTypeTask, Title: "b", StartDate: "2026-09-01", StartTime: "10:00"},
	}
	reversed := []entities.PlannerEntry{entries[1], entries[0]}

	if PlannerSignature(entries) != PlannerSignature(reversed) {
		t.Error("entry order must not affect the signature")
	}

	changed := entities.CloneEntries(entries)
	changed[0].Title = "renamed"
	if PlannerSignature(entries) == PlannerSignature(changed) {
		t.Error("entry content change must change the signature")
	}

	if PlannerSignature(nil) != PlannerSignature([]entities.PlannerEntry{}) {
		t.Error("nil and empty planners must hash equal")
	}
}
