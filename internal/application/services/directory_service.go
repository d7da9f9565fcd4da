package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/config"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/ports"
)

// Claims represents the JWT claims issued at login.
type Claims struct {
	Username string            `json:"username"`
	Role     entities.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// DirectoryService owns user records: signup, lookup, partial updates
// and credential checks.
type DirectoryService struct {
	userRepo    ports.UserRepository
	plannerRepo ports.PlannerRepository
	jwtConfig   config.JWTConfig
	logger      *logger.Logger
}

// NewDirectoryService creates a new directory service.
func NewDirectoryService(userRepo ports.UserRepository, plannerRepo ports.PlannerRepository, jwtConfig config.JWTConfig, logger *logger.Logger) *DirectoryService {
	return &DirectoryService{
		userRepo:    userRepo,
		plannerRepo: plannerRepo,
		jwtConfig:   jwtConfig,
		logger:      logger,
	}
}

// CreateUser registers a new account. Usernames are unique
// case-insensitively; the comparison key is the lowercased username.
func (s *DirectoryService) CreateUser(ctx context.Context, req ports.CreateUserRequest) (*entities.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", entities.ErrValidation)
	}

	role := req.Role
	if role == "" {
		role = entities.UserRoleSolo
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: invalid role %q", entities.ErrValidation, role)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		ID:        entities.NewUserID(),
		Username:  username,
		Email:     strings.TrimSpace(strings.ToLower(req.Email)),
		Password:  string(hashedPassword),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	// Every account gets an empty planner so the first pull after
	// signup never 404s.
	if err := s.plannerRepo.Ensure(ctx, username); err != nil {
		s.logger.Warnw("Failed to seed planner", "username", username, "error", err)
	}

	s.logger.Infow("User registered", "username", user.Username, "role", user.Role)
	return user, nil
}

// FindByUsername returns the user or nil when no account matches.
// Absence is a normal answer here, not an error.
func (s *DirectoryService) FindByUsername(ctx context.Context, username string) (*entities.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if errors.Is(err, entities.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail returns the user or nil when no account matches.
func (s *DirectoryService) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, entities.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser applies a partial update to an account. The update only
// carries fields from the handler's allow-list, so callers can never
// touch the password hash or the id through this path.
func (s *DirectoryService) UpdateUser(ctx context.Context, username string, update ports.UserUpdate) (*entities.User, error) {
	if update.SetRole && !update.Role.IsValid() {
		return nil, fmt.Errorf("%w: invalid role %q", entities.ErrValidation, update.Role)
	}
	if update.SetPassword && update.PasswordHash != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(update.PasswordHash), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		update.PasswordHash = string(hashed)
	}
	if update.SetEmail {
		update.Email = strings.TrimSpace(strings.ToLower(update.Email))
	}
	if update.Empty() {
		return s.userRepo.GetByUsername(ctx, username)
	}

	user, err := s.userRepo.Update(ctx, username, update)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("User updated", "username", username)
	return user, nil
}

// Login verifies credentials, stamps lastLogin and the device that
// signed in, and issues a bearer token.
func (s *DirectoryService) Login(ctx context.Context, req ports.LoginRequest) (*ports.LoginResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if errors.Is(err, entities.ErrUserNotFound) {
		s.logger.Warnw("Login attempt for unknown user", "username", req.Username)
		return nil, entities.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		s.logger.Warnw("Login attempt with wrong password", "username", req.Username)
		return nil, entities.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	update := ports.UserUpdate{
		SetLastLogin: true,
		LastLogin:    &now,
	}
	if req.DeviceID != "" {
		update.SetDeviceID = true
		update.DeviceID = req.DeviceID
		update.SetDeviceLabel = true
		update.DeviceLabel = req.DeviceLabel
	}

	user, err = s.userRepo.Update(ctx, user.Username, update)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logger.Infow("User logged in", "username", user.Username)

	return &ports.LoginResponse{
		User:        user,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtConfig.ExpiresIn.Seconds()),
	}, nil
}

// ListUsers returns every account in the directory.
func (s *DirectoryService) ListUsers(ctx context.Context) ([]*entities.User, error) {
	return s.userRepo.List(ctx)
}

func (s *DirectoryService) generateAccessToken(user *entities.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.jwtConfig.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.ExpiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtConfig.Secret))
}

// ValidateToken parses and verifies a bearer token.
func (s *DirectoryService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
