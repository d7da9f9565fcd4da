// Package mailer sends transactional email through Amazon SES. When no
// sender address is configured the mailer stays disabled and every send
// becomes a logged no-op, which keeps local development mail-free.
package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/familyhub/core/internal/infrastructure/config"
	"github.com/familyhub/core/internal/infrastructure/logger"
)

// Mailer delivers verification codes to users.
type Mailer interface {
	SendVerificationCode(ctx context.Context, toEmail, toName, code string) error
	IsEnabled() bool
}

// SESMailer sends mail through the SES v2 API.
type SESMailer struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
	enabled   bool
	logger    *logger.Logger
}

// New creates a mailer from config. An empty FromEmail yields a
// disabled mailer, not an error.
func New(cfg config.MailerConfig, log *logger.Logger) (*SESMailer, error) {
	l := log.WithComponent("mailer")

	if cfg.FromEmail == "" {
		l.Infow("Mailer disabled, no sender address configured")
		return &SESMailer{enabled: false, logger: l}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	l.Infow("Mailer enabled", "from", cfg.FromEmail, "region", cfg.Region)
	return &SESMailer{
		client:    sesv2.NewFromConfig(awsCfg),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		enabled:   true,
		logger:    l,
	}, nil
}

// IsEnabled reports whether sends actually reach SES.
func (m *SESMailer) IsEnabled() bool {
	return m.enabled
}

// SendVerificationCode emails a short-lived verification code.
func (m *SESMailer) SendVerificationCode(ctx context.Context, toEmail, toName, code string) error {
	if !m.enabled {
		m.logger.Infow("Skipping verification email, mailer disabled", "to", toEmail)
		return nil
	}

	subject := "Your FamilyHub verification code"
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2>Verify your email</h2>
		<p>Hi %s,</p>
		<p>Enter this code in FamilyHub to verify your email address:</p>
		<p style="font-size: 32px; letter-spacing: 6px; font-weight: bold; text-align: center;">%s</p>
		<p>The code expires in 10 minutes.</p>
		<p>If you didn't request this, you can safely ignore this email.</p>
	</div>
</body>
</html>
`, toName, code)

	textBody := fmt.Sprintf(`Hi %s,

Enter this code in FamilyHub to verify your email address:

    %s

The code expires in 10 minutes.

If you didn't request this, you can safely ignore this email.
`, toName, code)

	return m.send(ctx, toEmail, subject, htmlBody, textBody)
}

func (m *SESMailer) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := m.fromEmail
	if m.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	m.logger.Infow("Email sent", "to", toEmail, "subject", subject)
	return nil
}
