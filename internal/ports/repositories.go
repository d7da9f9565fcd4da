package ports

import (
	"context"
	"time"

	"github.com/familyhub/core/internal/domain/entities"
)

// UserRepository defines the interface for directory records.
// Lookups return entities.ErrUserNotFound on a miss; the service layer
// decides whether that is an error or an empty result.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	Update(ctx context.Context, username string, update UserUpdate) (*entities.User, error)
	List(ctx context.Context) ([]*entities.User, error)
}

// FamilyRepository defines the interface for family documents.
type FamilyRepository interface {
	Create(ctx context.Context, family *entities.Family) error
	GetByID(ctx context.Context, id string) (*entities.Family, error)
	GetByCode(ctx context.Context, code string) (*entities.Family, error)
	List(ctx context.Context) ([]*entities.Family, error)
	ListByMember(ctx context.Context, username string) ([]*entities.Family, error)
	// Codes returns every invite code currently issued.
	Codes(ctx context.Context) ([]string, error)
	// Replace overwrites the stored document keyed by family.ID.
	Replace(ctx context.Context, family *entities.Family) (*entities.Family, error)
	// Mutate applies fn to the stored document under the store's
	// read-modify-write lock and persists the result. This is the
	// minimal atomic unit for targeted family mutations.
	Mutate(ctx context.Context, id string, fn func(*entities.Family) error) (*entities.Family, error)
}

// PlannerRepository defines the interface for per-user planner documents.
type PlannerRepository interface {
	Get(ctx context.Context, username string) ([]entities.PlannerEntry, error)
	Replace(ctx context.Context, username string, entries []entities.PlannerEntry) ([]entities.PlannerEntry, error)
	// Ensure seeds an empty planner document for username if absent.
	Ensure(ctx context.Context, username string) error
	// All returns every planner keyed by username; used for
	// cross-planner share-code uniqueness checks.
	All(ctx context.Context) (map[string][]entities.PlannerEntry, error)
}

// WorkoutRepository defines the interface for per-user workout logs.
type WorkoutRepository interface {
	Get(ctx context.Context, username string) ([]entities.WorkoutSession, error)
	Replace(ctx context.Context, username string, sessions []entities.WorkoutSession) ([]entities.WorkoutSession, error)
}

// VerificationCode is a pending email verification challenge.
type VerificationCode struct {
	Code      string    `json:"code"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the challenge is past its TTL.
func (v *VerificationCode) Expired() bool {
	return time.Now().After(v.ExpiresAt)
}

// VerificationRepository stores pending verification codes keyed by
// email, with expiry. Backed by memory or Redis.
type VerificationRepository interface {
	Put(ctx context.Context, email string, code VerificationCode) error
	Get(ctx context.Context, email string) (*VerificationCode, error)
	Delete(ctx context.Context, email string) error
}

// UserUpdate is a partial directory update. Only fields whose Set flag
// is true are written; everything else is left untouched. The handler
// populates it from the wire allow-list, so unknown fields never reach
// the repository.
type UserUpdate struct {
	SetFamilyID    bool
	FamilyID       *string
	SetRole        bool
	Role           entities.UserRole
	SetLastLogin   bool
	LastLogin      *time.Time
	SetEmail       bool
	Email          string
	SetPassword    bool
	PasswordHash   string
	SetVerified    bool
	Verified       bool
	SetDeviceID    bool
	DeviceID       string
	SetDeviceLabel bool
	DeviceLabel    string
}

// Empty reports whether the update writes nothing.
func (u UserUpdate) Empty() bool {
	return !u.SetFamilyID && !u.SetRole && !u.SetLastLogin && !u.SetEmail &&
		!u.SetPassword && !u.SetVerified && !u.SetDeviceID && !u.SetDeviceLabel
}

// Apply writes the set fields onto user.
func (u UserUpdate) Apply(user *entities.User) {
	if u.SetFamilyID {
		user.FamilyID = u.FamilyID
	}
	if u.SetRole {
		user.Role = u.Role
	}
	if u.SetLastLogin {
		user.LastLogin = u.LastLogin
	}
	if u.SetEmail {
		user.Email = u.Email
	}
	if u.SetPassword {
		user.Password = u.PasswordHash
	}
	if u.SetVerified {
		user.Verified = u.Verified
	}
	if u.SetDeviceID {
		user.LastDeviceID = u.DeviceID
	}
	if u.SetDeviceLabel {
		user.LastDeviceLabel = u.DeviceLabel
	}
}
