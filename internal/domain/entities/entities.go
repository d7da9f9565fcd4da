package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrFamilyNotFound      = errors.New("family not found")
	ErrEntryNotFound       = errors.New("planner entry not found")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrValidation          = errors.New("validation failed")
	ErrCodeSpaceExhausted  = errors.New("invite code space exhausted")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
)

// UserRole describes what a user is allowed to do inside the app.
// "solo" is an account with no family attached; inside a family the
// role is one of owner, adult or kid.
type UserRole string

const (
	UserRoleSolo  UserRole = "solo"
	UserRoleOwner UserRole = "owner"
	UserRoleAdult UserRole = "adult"
	UserRoleKid   UserRole = "kid"
	UserRoleDemo  UserRole = "demo"
)

// Priority levels shared by reminders and planner entries.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// EntryType distinguishes single-day tasks from date-ranged events.
type EntryType string

const (
	EntryTypeTask  EntryType = "task"
	EntryTypeEvent EntryType = "event"
)

// User represents an account in the directory.
type User struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Password        string     `json:"-"`
	Role            UserRole   `json:"role"`
	FamilyID        *string    `json:"familyId"`
	Verified        bool       `json:"verified"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastLogin       *time.Time `json:"lastLogin"`
	LastDeviceID    string     `json:"lastDeviceId,omitempty"`
	LastDeviceLabel string     `json:"lastDeviceLabel,omitempty"`
}

// FamilyMember is a roster entry; the set is unique by username.
type FamilyMember struct {
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// Reminder is a shared family reminder.
type Reminder struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes,omitempty"`
	Priority   Priority  `json:"priority"`
	Date       string    `json:"date"`
	Time       string    `json:"time,omitempty"`
	AssignedTo []string  `json:"assignedTo"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ChatMessage is one entry in the in-family chat log.
type ChatMessage struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Family is the shared document a household converges on: roster,
// invite code, reminders and chat log. It is always replaced as a
// whole at the wire boundary.
type Family struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Code          string         `json:"code"`
	Owner         string         `json:"owner"`
	CreatedAt     time.Time      `json:"createdAt"`
	RegeneratedAt *time.Time     `json:"regeneratedAt,omitempty"`
	Members       []FamilyMember `json:"members"`
	Reminders     []Reminder     `json:"reminders"`
	Chat          []ChatMessage  `json:"chat"`
}

// PlannerEntry is one item in a user's personal day planner. Dates are
// calendar strings (YYYY-MM-DD) and times are HH:MM so they sort
// lexicographically the same way they sort chronologically.
type PlannerEntry struct {
	ID        string    `json:"id"`
	Type      EntryType `json:"type"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	Priority  Priority  `json:"priority"`
	StartDate string    `json:"startDate"`
	EndDate   string    `json:"endDate,omitempty"`
	StartTime string    `json:"startTime,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	ShareCode string    `json:"shareCode,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// WorkoutSession is one item in a user's workout log. Like the
// planner, the log is replaced as a whole list at the wire boundary.
type WorkoutSession struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Day       string     `json:"day,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Exercises []Exercise `json:"exercises"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Exercise is one movement inside a workout session.
type Exercise struct {
	Name   string `json:"name"`
	Sets   int    `json:"sets,omitempty"`
	Reps   int    `json:"reps,omitempty"`
	Weight string `json:"weight,omitempty"`
}

// ID generators. Prefixes keep ids self-describing in the store file.

func NewUserID() string        { return "user_" + uuid.NewString() }
func NewFamilyID() string      { return "fam_" + uuid.NewString() }
func NewReminderID() string    { return "rem_" + uuid.NewString() }
func NewChatMessageID() string { return "chat_" + uuid.NewString() }
func NewEntryID() string       { return "entry_" + uuid.NewString() }
func NewWorkoutID() string     { return "workout_" + uuid.NewString() }

// Member returns the roster entry for username, or nil.
func (f *Family) Member(username string) *FamilyMember {
	for i := range f.Members {
		if f.Members[i].Username == username {
			return &f.Members[i]
		}
	}
	return nil
}

// HasMember reports whether username is on the roster.
func (f *Family) HasMember(username string) bool {
	return f.Member(username) != nil
}

// Clone returns a deep copy so callers can mutate drafts without
// aliasing the stored document.
func (f *Family) Clone() *Family {
	if f == nil {
		return nil
	}
	out := *f
	out.Members = append([]FamilyMember(nil), f.Members...)
	out.Reminders = make([]Reminder, len(f.Reminders))
	for i, r := range f.Reminders {
		out.Reminders[i] = r
		out.Reminders[i].AssignedTo = append([]string(nil), r.AssignedTo...)
	}
	out.Chat = append([]ChatMessage(nil), f.Chat...)
	if f.RegeneratedAt != nil {
		t := *f.RegeneratedAt
		out.RegeneratedAt = &t
	}
	return &out
}

// Validate checks the invariants of a full family document before it
// is accepted as a whole-document replacement.
func (f *Family) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("%w: family id is required", ErrValidation)
	}
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: family name is required", ErrValidation)
	}
	owners := 0
	seen := make(map[string]bool, len(f.Members))
	for _, m := range f.Members {
		if m.Username == "" {
			return fmt.Errorf("%w: member username is required", ErrValidation)
		}
		if seen[m.Username] {
			return fmt.Errorf("%w: duplicate member %s", ErrValidation, m.Username)
		}
		seen[m.Username] = true
		if !m.Role.IsMemberRole() {
			return fmt.Errorf("%w: invalid member role %q", ErrValidation, m.Role)
		}
		if m.Role == UserRoleOwner {
			owners++
		}
	}
	if owners != 1 {
		return fmt.Errorf("%w: family must have exactly one owner", ErrValidation)
	}
	return nil
}

// CloneEntries copies a planner entry list.
func CloneEntries(entries []PlannerEntry) []PlannerEntry {
	return append([]PlannerEntry(nil), entries...)
}

// Validate checks a single planner entry. Events must not end before
// they start; date strings compare lexicographically.
func (e *PlannerEntry) Validate() error {
	switch e.Type {
	case EntryTypeTask, EntryTypeEvent:
	default:
		return fmt.Errorf("%w: invalid entry type %q", ErrValidation, e.Type)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: entry title is required", ErrValidation)
	}
	if e.StartDate == "" {
		return fmt.Errorf("%w: entry start date is required", ErrValidation)
	}
	if e.Type == EntryTypeEvent && e.EndDate != "" && e.EndDate < e.StartDate {
		return fmt.Errorf("%w: event end date %s is before start date %s", ErrValidation, e.EndDate, e.StartDate)
	}
	return nil
}

// CloneWorkouts copies a workout session list, exercises included.
func CloneWorkouts(sessions []WorkoutSession) []WorkoutSession {
	out := make([]WorkoutSession, len(sessions))
	for i, s := range sessions {
		out[i] = s
		out[i].Exercises = append([]Exercise(nil), s.Exercises...)
	}
	return out
}

// Validate checks a single workout session.
func (w *WorkoutSession) Validate() error {
	if strings.TrimSpace(w.Title) == "" {
		return fmt.Errorf("%w: workout title is required", ErrValidation)
	}
	for _, ex := range w.Exercises {
		if strings.TrimSpace(ex.Name) == "" {
			return fmt.Errorf("%w: exercise name is required", ErrValidation)
		}
	}
	return nil
}

// IsValid reports whether the role is one of the known account roles.
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleSolo, UserRoleOwner, UserRoleAdult, UserRoleKid, UserRoleDemo:
		return true
	default:
		return false
	}
}

// IsMemberRole reports whether the role is allowed on a family roster.
func (r UserRole) IsMemberRole() bool {
	switch r {
	case UserRoleOwner, UserRoleAdult, UserRoleKid:
		return true
	default:
		return false
	}
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}
