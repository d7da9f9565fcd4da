package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/ports"
	"github.com/familyhub/core/internal/queue"
)

// codeAlphabet excludes I, O, 0 and 1 so codes read unambiguously when
// spoken or written down.
const (
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength      = 6
	codeMaxAttempts = 2000
)

// FamilyService owns family documents and keeps the directory's
// familyId/role back-references in step with the roster.
type FamilyService struct {
	familyRepo ports.FamilyRepository
	userRepo   ports.UserRepository
	publisher  *queue.Publisher
	logger     *logger.Logger
}

// NewFamilyService creates a new family service. publisher may be nil
// when no broker is configured.
func NewFamilyService(familyRepo ports.FamilyRepository, userRepo ports.UserRepository, publisher *queue.Publisher, logger *logger.Logger) *FamilyService {
	return &FamilyService{
		familyRepo: familyRepo,
		userRepo:   userRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

func (s *FamilyService) announce(ctx context.Context, familyID, action string) {
	s.publisher.Publish(ctx, queue.DocumentChangedEvent{
		Collection: "families",
		Key:        familyID,
		Action:     action,
	})
}

// CreateFamily creates a family with the caller as its single owner
// and points the owner's directory record at it.
func (s *FamilyService) CreateFamily(ctx context.Context, name, ownerUsername string) (*entities.Family, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: family name is required", entities.ErrValidation)
	}

	owner, err := s.userRepo.GetByUsername(ctx, ownerUsername)
	if err != nil {
		return nil, err
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	family := &entities.Family{
		ID:        entities.NewFamilyID(),
		Name:      name,
		Code:      code,
		Owner:     owner.Username,
		CreatedAt: time.Now().UTC(),
		Members: []entities.FamilyMember{
			{Username: owner.Username, Role: entities.UserRoleOwner},
		},
		Reminders: []entities.Reminder{},
		Chat:      []entities.ChatMessage{},
	}

	if err := s.familyRepo.Create(ctx, family); err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}

	if err := s.pointUserAt(ctx, owner.Username, family.ID, entities.UserRoleOwner); err != nil {
		s.logger.Warnw("Failed to update owner directory record", "username", owner.Username, "error", err)
	}

	s.announce(ctx, family.ID, queue.ActionCreated)
	s.logger.LogUserAction(owner.Username, "family_created", map[string]interface{}{
		"family_id": family.ID,
	})
	return family, nil
}

// JoinByCode adds username to the family behind code. Joining a family
// the user already belongs to is a no-op, so a retried join request
// never duplicates a roster entry.
func (s *FamilyService) JoinByCode(ctx context.Context, username string, role entities.UserRole, code string) (*entities.Family, *entities.User, error) {
	if role == "" {
		role = entities.UserRoleAdult
	}
	if !role.IsMemberRole() || role == entities.UserRoleOwner {
		return nil, nil, fmt.Errorf("%w: cannot join with role %q", entities.ErrValidation, role)
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}

	target, err := s.familyRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	family, err := s.familyRepo.Mutate(ctx, target.ID, func(f *entities.Family) error {
		if f.HasMember(user.Username) {
			return nil
		}
		f.Members = append(f.Members, entities.FamilyMember{Username: user.Username, Role: role})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	member := family.Member(user.Username)
	if err := s.pointUserAt(ctx, user.Username, family.ID, member.Role); err != nil {
		return nil, nil, fmt.Errorf("failed to update directory record: %w", err)
	}

	updated, err := s.userRepo.GetByUsername(ctx, user.Username)
	if err != nil {
		return nil, nil, err
	}

	s.announce(ctx, family.ID, queue.ActionMutated)
	s.logger.LogUserAction(user.Username, "family_joined", map[string]interface{}{
		"family_id": family.ID,
	})
	return family, updated, nil
}

// RegenerateCode issues a fresh invite code and stamps regeneratedAt.
// The old code stops resolving the moment this returns; there is no
// grace period for joins already holding it.
func (s *FamilyService) RegenerateCode(ctx context.Context, familyID string) (*entities.Family, error) {
	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	family, err := s.familyRepo.Mutate(ctx, familyID, func(f *entities.Family) error {
		now := time.Now().UTC()
		f.Code = code
		f.RegeneratedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, familyID, queue.ActionCodeRotated)
	s.logger.Infow("Invite code regenerated", "family_id", familyID)
	return family, nil
}

// ReplaceFamily overwrites the stored document with the submitted one.
// The submitted document is validated, never coerced; a malformed
// payload is rejected with a validation error. Identity and the invite
// code survive from the stored copy so a replace can never break code
// uniqueness or rewrite history.
func (s *FamilyService) ReplaceFamily(ctx context.Context, family *entities.Family) (*entities.Family, error) {
	if err := family.Validate(); err != nil {
		return nil, err
	}

	current, err := s.familyRepo.GetByID(ctx, family.ID)
	if err != nil {
		return nil, err
	}

	draft := family.Clone()
	draft.Code = current.Code
	draft.CreatedAt = current.CreatedAt
	draft.RegeneratedAt = current.RegeneratedAt

	replaced, err := s.familyRepo.Replace(ctx, draft)
	if err != nil {
		return nil, err
	}

	if err := s.reconcileRoster(ctx, current, replaced); err != nil {
		s.logger.Warnw("Failed to reconcile roster back-references", "family_id", family.ID, "error", err)
	}

	s.announce(ctx, replaced.ID, queue.ActionReplaced)
	return replaced, nil
}

// UpdateMemberRole is a targeted mutation over the roster. The owner
// role never moves through this path.
func (s *FamilyService) UpdateMemberRole(ctx context.Context, familyID, username string, role entities.UserRole) (*entities.Family, *entities.User, error) {
	if !role.IsMemberRole() {
		return nil, nil, fmt.Errorf("%w: invalid member role %q", entities.ErrValidation, role)
	}

	family, err := s.familyRepo.Mutate(ctx, familyID, func(f *entities.Family) error {
		member := f.Member(username)
		if member == nil {
			return fmt.Errorf("%w: %s is not a member", entities.ErrUserNotFound, username)
		}
		if member.Role == entities.UserRoleOwner || role == entities.UserRoleOwner {
			return fmt.Errorf("%w: ownership cannot be reassigned here", entities.ErrValidation)
		}
		member.Role = role
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.Update(ctx, username, ports.UserUpdate{SetRole: true, Role: role})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update directory record: %w", err)
	}

	s.announce(ctx, familyID, queue.ActionMutated)
	s.logger.LogUserAction(username, "role_changed", map[string]interface{}{
		"family_id": familyID,
		"role":      string(role),
	})
	return family, user, nil
}

// GetByID returns the family document.
func (s *FamilyService) GetByID(ctx context.Context, id string) (*entities.Family, error) {
	return s.familyRepo.GetByID(ctx, id)
}

// GetByCode resolves a family through its current invite code.
func (s *FamilyService) GetByCode(ctx context.Context, code string) (*entities.Family, error) {
	return s.familyRepo.GetByCode(ctx, code)
}

// ListFamilies returns either every family or, when memberUsername is
// set, only the families that user belongs to.
func (s *FamilyService) ListFamilies(ctx context.Context, memberUsername string) ([]*entities.Family, error) {
	if memberUsername != "" {
		return s.familyRepo.ListByMember(ctx, memberUsername)
	}
	return s.familyRepo.List(ctx)
}

// generateCode draws random codes until one misses the issued set.
func (s *FamilyService) generateCode(ctx context.Context) (string, error) {
	codes, err := s.familyRepo.Codes(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list issued codes: %w", err)
	}
	issued := make(map[string]bool, len(codes))
	for _, c := range codes {
		issued[strings.ToUpper(c)] = true
	}

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

func randomCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (s *FamilyService) pointUserAt(ctx context.Context, username, familyID string, role entities.UserRole) error {
	id := familyID
	_, err := s.userRepo.Update(ctx, username, ports.UserUpdate{
		SetFamilyID: true,
		FamilyID:    &id,
		SetRole:     true,
		Role:        role,
	})
	return err
}

// reconcileRoster clears the back-reference of anyone removed by a
// whole-document replace and points newcomers at the family.
func (s *FamilyService) reconcileRoster(ctx context.Context, before, after *entities.Family) error {
	was := make(map[string]bool, len(before.Members))
	for _, m := range before.Members {
		was[m.Username] = true
	}
	now := make(map[string]entities.UserRole, len(after.Members))
	for _, m := range after.Members {
		now[m.Username] = m.Role
	}

	for username := range was {
		if _, still := now[username]; !still {
			_, err := s.userRepo.Update(ctx, username, ports.UserUpdate{
				SetFamilyID: true,
				FamilyID:    nil,
				SetRole:     true,
				Role:        entities.UserRoleSolo,
			})
			if err != nil {
				return err
			}
		}
	}
	for username, role := range now {
		if !was[username] {
			if err := s.pointUserAt(ctx, username, after.ID, role); err != nil {
				return err
			}
		}
	}
	return nil
}
