package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/BradenHooton/loginguard/internal/models"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

// SESClient is the subset of the SES API used to deliver codes
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESOTPSender emails one-time codes using AWS SES
type SESOTPSender struct {
	client      SESClient
	fromAddress string
	ttl         time.Duration
	logger      *slog.Logger
}

// NewSESOTPSender creates a sender backed by the default AWS credential chain
func NewSESOTPSender(ctx context.Context, region, fromAddress string, ttl time.Duration, logger *slog.Logger) (*SESOTPSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESOTPSenderWithClient(ses.NewFromConfig(cfg), fromAddress, ttl, logger), nil
}

func NewSESOTPSenderWithClient(client SESClient, fromAddress string, ttl time.Duration, logger *slog.Logger) *SESOTPSender {
	return &SESOTPSender{
		client:      client,
		fromAddress: fromAddress,
		ttl:         ttl,
		logger:      logger,
	}
}

// SendOTP emails the code to the user's address on file
func (s *SESOTPSender) SendOTP(ctx context.Context, user *models.User, code string) error {
	if user.Email == "" {
		return fmt.Errorf("user has no email address on file")
	}

	minutes := int(s.ttl.Minutes())
	textBody := fmt.Sprintf(`Your verification code is %s

It expires in %d minutes. If you did not try to sign in, someone may know your password; change it now.
`, code, minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{user.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your sign-in verification code"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send verification code via SES",
			slog.String("email", pkglogger.SanitizedEmail(user.Email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("verification code sent",
		slog.String("email", pkglogger.SanitizedEmail(user.Email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogOTPSender writes codes to the application log. It backs the "log"
// method and local development where no mail transport exists.
type LogOTPSender struct {
	logger *slog.Logger
}

func NewLogOTPSender(logger *slog.Logger) *LogOTPSender {
	return &LogOTPSender{logger: logger}
}

func (s *LogOTPSender) SendOTP(_ context.Context, user *models.User, code string) error {
	s.logger.Info("verification code issued",
		slog.String("username", user.Username),
		slog.String("code", code))
	return nil
}
