// Package sync implements the client-side synchronizer: a local cache
// of the family and planner documents kept in step with the
// authoritative services by periodic pulls and pull-mutate-push
// mutations, with content signatures deciding when anything actually
// changed.
package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/familyhub/core/internal/domain/entities"
)

// Signatures hash a projection of the document's semantically
// meaningful fields. List order is normalized first, so two documents
// with the same logical content always hash the same regardless of how
// the lists happened to be ordered on the wire. Volatile bookkeeping
// (createdAt of the document itself, regeneratedAt) is dropped.

type memberProjection struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type reminderProjection struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Notes      string   `json:"notes"`
	Priority   string   `json:"priority"`
	Date       string   `json:"date"`
	Time       string   `json:"time"`
	AssignedTo []string `json:"assignedTo"`
	CreatedBy  string   `json:"createdBy"`
	CreatedAt  int64    `json:"createdAt"`
}

type chatProjection struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"createdAt"`
}

type familyProjection struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Code      string               `json:"code"`
	Owner     string               `json:"owner"`
	Members   []memberProjection   `json:"members"`
	Reminders []reminderProjection `json:"reminders"`
	Chat      []chatProjection     `json:"chat"`
}

type entryProjection struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Notes     string `json:"notes"`
	Priority  string `json:"priority"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	ShareCode string `json:"shareCode"`
}

// FamilySignature returns the content signature of a family document.
// A nil family has the empty signature.
func FamilySignature(f *entities.Family) string {
	if f == nil {
		return ""
	}

	p := familyProjection{
		ID:        f.ID,
		Name:      f.Name,
		Code:      f.Code,
		Owner:     f.Owner,
		Members:   make([]memberProjection, 0, len(f.Members)),
		Reminders: make([]reminderProjection, 0, len(f.Reminders)),
		Chat:      make([]chatProjection, 0, len(f.Chat)),
	}

	for _, m := range f.Members {
		p.Members = append(p.Members, memberProjection{
			Username: m.Username,
			Role:     string(m.Role),
		})
	}
	sort.Slice(p.Members, func(i, j int) bool {
		return p.Members[i].Username < p.Members[j].Username
	})

	for _, r := range f.Reminders {
		assigned := append([]string{}, r.AssignedTo...)
		sort.Strings(assigned)
		p.Reminders = append(p.Reminders, reminderProjection{
			ID:         r.ID,
			Title:      r.Title,
			Notes:      r.Notes,
			Priority:   string(r.Priority),
			Date:       r.Date,
			Time:       r.Time,
			AssignedTo: assigned,
			CreatedBy:  r.CreatedBy,
			CreatedAt:  r.CreatedAt.UnixMilli(),
		})
	}
	sort.Slice(p.Reminders, func(i, j int) bool {
		if p.Reminders[i].CreatedAt != p.Reminders[j].CreatedAt {
			return p.Reminders[i].CreatedAt < p.Reminders[j].CreatedAt
		}
		return p.Reminders[i].ID < p.Reminders[j].ID
	})

	for _, c := range f.Chat {
		p.Chat = append(p.Chat, chatProjection{
			ID:        c.ID,
			Username:  c.Username,
			Message:   c.Message,
			CreatedAt: c.CreatedAt.UnixMilli(),
		})
	}
	sort.Slice(p.Chat, func(i, j int) bool {
		if p.Chat[i].CreatedAt != p.Chat[j].CreatedAt {
			return p.Chat[i].CreatedAt < p.Chat[j].CreatedAt
		}
		return p.Chat[i].ID < p.Chat[j].ID
	})

	return hash(p)
}

// PlannerSignature returns the content signature of a planner
// document. Entries are ordered by (startDate, startTime, id).
func PlannerSignature(entries []entities.PlannerEntry) string {
	p := make([]entryProjection, 0, len(entries))
	for _, e := range entries {
		p = append(p, entryProjection{
			ID:        e.ID,
			Type:      string(e.Type),
			Title:     e.Title,
			Notes:     e.Notes,
			Priority:  string(e.Priority),
			StartDate: e.StartDate,
			EndDate:   e.EndDate,
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
			ShareCode: e.ShareCode,
		})
	}
	sort.Slice(p, func(i, j int) bool {
		if p[i].StartDate != p[j].StartDate {
			return p[i].StartDate < p[j].StartDate
		}
		if p[i].StartTime != p[j].StartTime {
			return p[i].StartTime < p[j].StartTime
		}
		return p[i].ID < p[j].ID
	})
	return hash(p)
}

func hash(v interface{}) string {
	// Struct fields marshal in declaration order, so the encoding is
	// deterministic once list order is normalized.
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
