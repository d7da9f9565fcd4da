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
	"github.com/familyhub/core/internal/mailer"
	"github.com/familyhub/core/internal/ports"
)

const verificationTTL = 10 * time.Minute

// VerificationService issues six-digit email verification codes and
// marks accounts verified when the right code comes back. Codes are
// single-use and expire after ten minutes.
type VerificationService struct {
	codes    ports.VerificationRepository
	userRepo ports.UserRepository
	mailer   mailer.Mailer
	logger   *logger.Logger
}

// NewVerificationService creates a new verification service.
func NewVerificationService(codes ports.VerificationRepository, userRepo ports.UserRepository, m mailer.Mailer, logger *logger.Logger) *VerificationService {
	return &VerificationService{
		codes:    codes,
		userRepo: userRepo,
		mailer:   m,
		logger:   logger,
	}
}

// Send issues a fresh code for email and mails it. A new send replaces
// any pending code for the same address.
func (s *VerificationService) Send(ctx context.Context, email, username string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", entities.ErrValidation)
	}

	code, err := sixDigitCode()
	if err != nil {
		return err
	}

	challenge := ports.VerificationCode{
		Code:      code,
		Username:  username,
		ExpiresAt: time.Now().Add(verificationTTL),
	}
	if err := s.codes.Put(ctx, email, challenge); err != nil {
		return err
	}

	if err := s.mailer.SendVerificationCode(ctx, email, username, code); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
	}

	s.logger.Infow("Verification code sent", "email", email)
	return nil
}

// Verify checks the submitted code. On success the pending code is
// consumed and the account is marked verified; a second attempt with
// the same code fails.
func (s *VerificationService) Verify(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	pending, err := s.codes.Get(ctx, email)
	if err != nil {
		return err
	}
	if pending == nil || pending.Code != strings.TrimSpace(code) {
		return fmt.Errorf("%w: wrong or expired verification code", entities.ErrValidation)
	}

	if err := s.codes.Delete(ctx, email); err != nil {
		return err
	}

	if pending.Username != "" {
		_, err := s.userRepo.Update(ctx, pending.Username, ports.UserUpdate{SetVerified: true, Verified: true})
		if err != nil {
			return err
		}
	}

	s.logger.Infow("Email verified", "email", email)
	return nil
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
