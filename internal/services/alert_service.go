package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the part of the SES client used to send alerts
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESAlertNotifier emails security alerts through AWS SES
type SESAlertNotifier struct {
	client      SESAPI
	fromAddress string
	recipients  []string
	logger      *slog.Logger
}

// NewSESAlertNotifier loads the default AWS config for region and builds an SES client
func NewSESAlertNotifier(ctx context.Context, region, fromAddress string, recipients []string, logger *slog.Logger) (*SESAlertNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESAlertNotifier{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		recipients:  recipients,
		logger:      logger,
	}, nil
}

// Notify sends one plain-text email summarizing the report and its alerts
func (n *SESAlertNotifier) Notify(ctx context.Context, report *models.SecurityReport, alerts []models.SecurityAlert) error {
	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: n.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("[stockroom] %d security alert(s)", len(alerts))),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(formatAlertBody(report, alerts)),
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	n.logger.Info("security alert email sent",
		slog.Int("recipients", len(n.recipients)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

func formatAlertBody(report *models.SecurityReport, alerts []models.SecurityAlert) string {
	var b strings.Builder

	b.WriteString("Security alerts\n\n")
	for _, alert := range alerts {
		fmt.Fprintf(&b, "- %s (threshold %d)\n", alert.Message, alert.Threshold)
	}

	fmt.Fprintf(&b, "\nLast %d hours (%s to %s)\n",
		report.Period.Hours,
		report.Period.StartTime.UTC().Format("2006-01-02 15:04 MST"),
		report.Period.EndTime.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Attempts: %d total, %d successful, %d failed (%.2f%% success)\n",
		report.Summary.TotalAttempts, report.Summary.SuccessfulLogins,
		report.Summary.FailedAttempts, report.Summary.SuccessRate)
	fmt.Fprintf(&b, "Active lockouts: %d\n", report.Current.ActiveLockouts)

	if len(report.TopThreats.FailedOrigins) > 0 {
		b.WriteString("\nTop failing origins:\n")
		for _, o := range report.TopThreats.FailedOrigins {
			fmt.Fprintf(&b, "  %s  %d\n", o.Origin, o.FailedCount)
		}
	}

	return b.String()
}

// LogAlertNotifier only logs; used when SES is not configured
type LogAlertNotifier struct {
	logger *slog.Logger
}

func NewLogAlertNotifier(logger *slog.Logger) *LogAlertNotifier {
	return &LogAlertNotifier{logger: logger}
}

func (n *LogAlertNotifier) Notify(ctx context.Context, report *models.SecurityReport, alerts []models.SecurityAlert) error {
	n.logger.Info("alert email delivery disabled",
		slog.Int("alerts", len(alerts)),
		slog.Int("report_hours", report.Period.Hours))
	return nil
}
