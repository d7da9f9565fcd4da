package ports

import (
	"context"

	"github.com/familyhub/core/internal/domain/entities"
)

// DirectoryService owns user records and credential checks.
type DirectoryService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*entities.User, error)
	FindByUsername(ctx context.Context, username string) (*entities.User, error)
	FindByEmail(ctx context.Context, email string) (*entities.User, error)
	UpdateUser(ctx context.Context, username string, update UserUpdate) (*entities.User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	ListUsers(ctx context.Context) ([]*entities.User, error)
}

// FamilyRegistry owns family documents: roster, invite code, reminders
// and chat. All writes are whole-document at the store.
type FamilyRegistry interface {
	CreateFamily(ctx context.Context, name, ownerUsername string) (*entities.Family, error)
	JoinByCode(ctx context.Context, username string, role entities.UserRole, code string) (*entities.Family, *entities.User, error)
	RegenerateCode(ctx context.Context, familyID string) (*entities.Family, error)
	ReplaceFamily(ctx context.Context, family *entities.Family) (*entities.Family, error)
	UpdateMemberRole(ctx context.Context, familyID, username string, role entities.UserRole) (*entities.Family, *entities.User, error)
	GetByID(ctx context.Context, id string) (*entities.Family, error)
	GetByCode(ctx context.Context, code string) (*entities.Family, error)
	ListFamilies(ctx context.Context, memberUsername string) ([]*entities.Family, error)
}

// PlannerService owns one planner document per user.
type PlannerService interface {
	GetPlanner(ctx context.Context, username string) ([]entities.PlannerEntry, error)
	ReplacePlanner(ctx context.Context, username string, entries []entities.PlannerEntry) ([]entities.PlannerEntry, error)
	GetEntryByShareCode(ctx context.Context, code string) (*SharedEntry, error)
}

// WorkoutService owns one workout log per user, replaced wholesale
// like the planner.
type WorkoutService interface {
	GetWorkout(ctx context.Context, username string) ([]entities.WorkoutSession, error)
	ReplaceWorkout(ctx context.Context, username string, sessions []entities.WorkoutSession) ([]entities.WorkoutSession, error)
}

// VerificationService issues and checks email verification codes.
type VerificationService interface {
	Send(ctx context.Context, email, username string) error
	Verify(ctx context.Context, email, code string) error
}

// AssistantService proxies prompts to the external text oracle.
type AssistantService interface {
	Generate(ctx context.Context, req AssistantRequest) (string, error)
}

// Request/response types

type CreateUserRequest struct {
	Username string            `json:"username" validate:"required,min=2,max=40"`
	Email    string            `json:"email" validate:"required,email"`
	Password string            `json:"password" validate:"required,min=6"`
	Role     entities.UserRole `json:"role"`
}

type LoginRequest struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	DeviceID    string `json:"deviceId"`
	DeviceLabel string `json:"deviceLabel"`
}

// LoginResponse carries the refreshed user record plus a bearer token
// for the external session-binding layer; the API itself stays
// stateless and username-addressed.
type LoginResponse struct {
	User        *entities.User `json:"user"`
	AccessToken string         `json:"accessToken"`
	TokenType   string         `json:"tokenType"`
	ExpiresIn   int64          `json:"expiresIn"`
}

// SharedEntry is a planner entry resolved through its share code.
type SharedEntry struct {
	Owner string                `json:"owner"`
	Entry entities.PlannerEntry `json:"entry"`
}

// AssistantTurn is one prior exchange in the assistant conversation.
type AssistantTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type AssistantRequest struct {
	Message     string          `json:"message" validate:"required"`
	System      string          `json:"system"`
	History     []AssistantTurn `json:"history"`
	Temperature *float64        `json:"temperature"`
}
