package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/config"
	"github.com/familyhub/core/internal/ports"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:    "test-secret",
		ExpiresIn: time.Hour,
		Issuer:    "familyhub-test",
	}
}

func TestCreateUser(t *testing.T) {
	directory, _, _ := newTestServices(t)
	ctx := context.Background()

	user, err := directory.CreateUser(ctx, ports.CreateUserRequest{
		Username: "  alice  ",
		Email:    "Alice@Example.com",
		Password: "secret-pass",
	})
	if err != nil {
		t.Fatal(err)
	}

	if user.Username != "alice" {
		t.Errorf("username not trimmed: %q", user.Username)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email not lowercased: %q", user.Email)
	}
	if user.Role != entities.UserRoleSolo {
		t.Errorf("default role should be solo, got %s", user.Role)
	}
	if user.Password == "secret-pass" {
		t.Error("password stored in plain text")
	}
	if user.ID == "" || user.CreatedAt.IsZero() {
		t.Error("id and createdAt must be stamped")
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	directory, _, _ := newTestServices(t)
	ctx := context.Background()

	mustCreateUser(t, directory, "alice")

	_, err := directory.CreateUser(ctx, ports.CreateUserRequest{
		Username: "ALICE",
		Email:    "other@example.com",
		Password: "secret-pass",
	})
	if !errors.Is(err, entities.ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken for case-insensitive duplicate, got %v", err)
	}
}

func TestCreateUserDuplicateEmailAllowed(t *testing.T) {
	directory, _, _ := newTestServices(t)
	ctx := context.Background()

	if _, err := directory.CreateUser(ctx, ports.CreateUserRequest{
		Username: "alice", Email: "shared@example.com", Password: "secret-pass",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := directory.CreateUser(ctx, ports.CreateUserRequest{
		Username: "bob", Email: "shared@example.com", Password: "secret-pass",
	}); err != nil {
		t.Errorf("shared email between accounts must be permitted, got %v", err)
	}

	// Email lookup returns one match.
	found, err := directory.FindByEmail(ctx, "shared@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil {
		t.Fatal("expected a user for shared email")
	}
}

func TestCreateUserInvalidRole(t *testing.T) {
	directory, _, _ := newTestServices(t)

	_, err := directory.CreateUser(context.Background(), ports.CreateUserRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret-pass",
		Role:     entities.UserRole("superadmin"),
	})
	if !errors.Is(err, entities.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestFindByUsernameMiss(t *testing.T) {
	directory, _, _ := newTestServices(t)

	user, err := directory.FindByUsername(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("miss must not be an error, got %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
}

func TestLogin(t *testing.T) {
	directory, _, _ := newTestServices(t)
	ctx := context.Background()

	mustCreateUser(t, directory, "alice")

	resp, err := directory.Login(ctx, ports.LoginRequest{
		Username:    "alice",
		Password:    "secret-pass",
		DeviceID:    "dev_1",
		DeviceLabel: "kitchen tablet",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Errorf("unexpected token response: %+v", resp)
	}
	if resp.ExpiresIn != int64(time.Hour/time.Second) {
		t.Errorf("expiresIn = %d, want %d", resp.ExpiresIn, int64(time.Hour/time.Second))
	}

	claims, err := directory.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if claims.Username != "alice" {
		t.Errorf("claims username = %q", claims.Username)
	}

	// The login is recorded on the account.
	user, err := directory.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if user.LastLogin == nil {
		t.Error("lastLogin not stamped")
	}
	if user.LastDeviceID != "dev_1" || user.LastDeviceLabel != "kitchen tablet" {
		t.Errorf("device not recorded: %q %q", user.LastDeviceID, user.LastDeviceLabel)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	directory, _, _ := newTestServices(t)
	ctx := context.Background()

	mustCreateUser(t, directory, "alice")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "not-the-pass"},
		{"unknown user", "mallory", "secret-pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := directory.Login(ctx, ports.LoginRequest{Username: tt.username, Password: tt.password})
			if !errors.Is(err, entities.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestUpdateUser(t *testing.T) {
	directory, _, _ := newTestServices(t)
	ctx := context.Background()

	mustCreateUser(t, directory, "alice")

	famID := "fam_1"
	updated, err := directory.UpdateUser(ctx, "alice", ports.UserUpdate{
		SetFamilyID: true, FamilyID: &famID,
		SetRole: true, Role: entities.UserRoleAdult,
		SetVerified: true, Verified: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.FamilyID == nil || *updated.FamilyID != "fam_1" {
		t.Errorf("familyId not applied: %v", updated.FamilyID)
	}
	if updated.Role != entities.UserRoleAdult || !updated.Verified {
		t.Errorf("role/verified not applied: %+v", updated)
	}

	// Clearing the family pointer with an explicit null.
	cleared, err := directory.UpdateUser(ctx, "alice", ports.UserUpdate{SetFamilyID: true, FamilyID: nil})
	if err != nil {
		t.Fatal(err)
	}
	if cleared.FamilyID != nil {
		t.Errorf("familyId not cleared: %v", cleared.FamilyID)
	}

	// Password updates are re-hashed and usable.
	if _, err := directory.UpdateUser(ctx, "alice", ports.UserUpdate{SetPassword: true, PasswordHash: "new-secret"}); err != nil {
		t.Fatal(err)
	}
	if _, err := directory.Login(ctx, ports.LoginRequest{Username: "alice", Password: "new-secret"}); err != nil {
		t.Errorf("login with updated password failed: %v", err)
	}

	if _, err := directory.UpdateUser(ctx, "ghost", ports.UserUpdate{SetRole: true, Role: entities.UserRoleAdult}); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
