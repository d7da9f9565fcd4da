package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/ports"
	"github.com/familyhub/core/internal/queue"
)

// PlannerService owns one planner document per user. The wire contract
// is whole-list replace; the service validates every entry and owns
// share-code issuance.
type PlannerService struct {
	plannerRepo ports.PlannerRepository
	userRepo    ports.UserRepository
	publisher   *queue.Publisher
	logger      *logger.Logger
}

// NewPlannerService creates a new planner service. publisher may be
// nil when no broker is configured.
func NewPlannerService(plannerRepo ports.PlannerRepository, userRepo ports.UserRepository, publisher *queue.Publisher, logger *logger.Logger) *PlannerService {
	return &PlannerService{
		plannerRepo: plannerRepo,
		userRepo:    userRepo,
		publisher:   publisher,
		logger:      logger,
	}
}

// GetPlanner returns the user's entries, empty list if none yet.
func (s *PlannerService) GetPlanner(ctx context.Context, username string) ([]entities.PlannerEntry, error) {
	if _, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	}
	return s.plannerRepo.Get(ctx, username)
}

// ReplacePlanner overwrites the user's planner with entries. Every
// entry is validated, never coerced. An entry submitted with a
// shareCode it does not already own gets a freshly issued code; codes
// are unique across every planner in the store, so a code resolves to
// exactly one entry.
func (s *PlannerService) ReplacePlanner(ctx context.Context, username string, entries []entities.PlannerEntry) ([]entities.PlannerEntry, error) {
	if _, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	}

	current, err := s.plannerRepo.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]string, len(current))
	for _, e := range current {
		if e.ShareCode != "" {
			owned[e.ID] = e.ShareCode
		}
	}

	issued, err := s.issuedShareCodes(ctx, username)
	if err != nil {
		return nil, err
	}
	for _, code := range owned {
		issued[code] = true
	}

	next := entities.CloneEntries(entries)
	seen := make(map[string]bool, len(next))
	for i := range next {
		e := &next[i]
		if e.ID == "" {
			e.ID = entities.NewEntryID()
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("%w: duplicate entry id %s", entities.ErrValidation, e.ID)
		}
		seen[e.ID] = true
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if e.Priority == "" {
			e.Priority = entities.PriorityMedium
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}

		if e.ShareCode == "" {
			continue
		}
		if owned[e.ID] == e.ShareCode {
			continue
		}
		// Any other value is a request to share: the server, not the
		// client, issues the actual code.
		code, err := uniqueShareCode(issued)
		if err != nil {
			return nil, err
		}
		issued[code] = true
		e.ShareCode = code
	}

	replaced, err := s.plannerRepo.Replace(ctx, username, next)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, queue.DocumentChangedEvent{
		Collection: "planners",
		Key:        username,
		Action:     queue.ActionReplaced,
	})
	s.logger.Infow("Planner replaced", "username", username, "entries", len(replaced))
	return replaced, nil
}

// GetEntryByShareCode resolves a share code to its owner and entry.
func (s *PlannerService) GetEntryByShareCode(ctx context.Context, code string) (*ports.SharedEntry, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: share code is required", entities.ErrValidation)
	}

	planners, err := s.plannerRepo.All(ctx)
	if err != nil {
		return nil, err
	}
	for username, entries := range planners {
		for _, e := range entries {
			if e.ShareCode == code {
				return &ports.SharedEntry{Owner: username, Entry: e}, nil
			}
		}
	}
	return nil, entities.ErrEntryNotFound
}

// issuedShareCodes collects every code held by a planner other than
// the one being replaced.
func (s *PlannerService) issuedShareCodes(ctx context.Context, exceptUsername string) (map[string]bool, error) {
	planners, err := s.plannerRepo.All(ctx)
	if err != nil {
		return nil, err
	}
	issued := map[string]bool{}
	for username, entries := range planners {
		if username == exceptUsername {
			continue
		}
		for _, e := range entries {
			if e.ShareCode != "" {
				issued[e.ShareCode] = true
			}
		}
	}
	return issued, nil
}

func uniqueShareCode(issued map[string]bool) (string, error) {
	for attempt := 0; attempt < codeMaxAttempts; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", err
		}
		if !issued[code] {
			return code, nil
		}
	}
	return "", entities.ErrCodeSpaceExhausted
}
