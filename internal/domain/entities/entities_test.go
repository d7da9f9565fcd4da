package entities

import (
	"errors"
	"testing"
	"time"
)

func validFamily() *Family {
	return &Family{
		ID:        NewFamilyID(),
		Name:      "The Tests",
		Code:      "ABC234",
		Owner:     "alice",
		CreatedAt: time.Now(),
		Members: []FamilyMember{
			{Username: "alice", Role: UserRoleOwner},
			{Username: "bob", Role: UserRoleAdult},
		},
		Reminders: []Reminder{},
		Chat:      []ChatMessage{},
	}
}

func TestFamilyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Family)
		wantErr bool
	}{
		{
			name:   "valid family",
			mutate: func(f *Family) {},
		},
		{
			name:    "missing name",
			mutate:  func(f *Family) { f.Name = "  " },
			wantErr: true,
		},
		{
			name:    "missing id",
			mutate:  func(f *Family) { f.ID = "" },
			wantErr: true,
		},
		{
			name: "duplicate member",
			mutate: func(f *Family) {
				f.Members = append(f.Members, FamilyMember{Username: "bob", Role: UserRoleKid})
			},
			wantErr: true,
		},
		{
			name: "no owner",
			mutate: func(f *Family) {
				f.Members[0].Role = UserRoleAdult
			},
			wantErr: true,
		},
		{
			name: "two owners",
			mutate: func(f *Family) {
				f.Members[1].Role = UserRoleOwner
			},
			wantErr: true,
		},
		{
			name: "solo is not a member role",
			mutate: func(f *Family) {
				f.Members[1].Role = UserRoleSolo
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFamily()
			tt.mutate(f)
			err := f.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error %v is not ErrValidation", err)
			}
		})
	}
}

func TestFamilyClone(t *testing.T) {
	f := validFamily()
	f.Chat = []ChatMessage{{ID: "chat_1", Username: "alice", Message: "hi", CreatedAt: time.Now()}}

	clone := f.Clone()
	clone.Members[0].Username = "mallory"
	clone.Chat[0].Message = "changed"
	clone.Name = "Other"

	if f.Members[0].Username != "alice" {
		t.Error("clone shares members slice with original")
	}
	if f.Chat[0].Message != "hi" {
		t.Error("clone shares chat slice with original")
	}
	if f.Name != "The Tests" {
		t.Error("clone shares scalar state with original")
	}
}

func TestPlannerEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   PlannerEntry
		wantErr bool
	}{
		{
			name:  "valid task",
			entry: PlannerEntry{Type: EntryTypeTask, Title: "laundry", StartDate: "2026-09-01"},
		},
		{
			name:  "valid event",
			entry: PlannerEntry{Type: EntryTypeEvent, Title: "trip", StartDate: "2026-09-01", EndDate: "2026-09-03"},
		},
		{
			name:    "unknown type",
			entry:   PlannerEntry{Type: "meeting", Title: "x", StartDate: "2026-09-01"},
			wantErr: true,
		},
		{
			name:    "missing title",
			entry:   PlannerEntry{Type: EntryTypeTask, Title: " ", StartDate: "2026-09-01"},
			wantErr: true,
		},
		{
			name:    "missing start date",
			entry:   PlannerEntry{Type: EntryTypeTask, Title: "x"},
			wantErr: true,
		},
		{
			name:    "event ends before it starts",
			entry:   PlannerEntry{Type: EntryTypeEvent, Title: "trip", StartDate: "2026-09-03", EndDate: "2026-09-01"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestUserRoles(t *testing.T) {
	if !UserRoleSolo.IsValid() || !UserRoleDemo.IsValid() {
		t.Error("solo and demo must be valid account roles")
	}
	if UserRoleSolo.IsMemberRole() || UserRoleDemo.IsMemberRole() {
		t.Error("solo and demo must not be roster roles")
	}
	if !UserRoleOwner.IsMemberRole() || !UserRoleAdult.IsMemberRole() || !UserRoleKid.IsMemberRole() {
		t.Error("owner, adult and kid must be roster roles")
	}
	if UserRole("admin").IsValid() {
		t.Error("unknown role must be invalid")
	}
}
