package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-wms/internal/jobs"
	"github.com/odyssey-erp/odyssey-wms/internal/users"
)

// ExpiryNoticePayload configures one expiry notice run.
type ExpiryNoticePayload struct {
	Days int `json:"days"`
}

// NewExpiryNoticeTask builds the cron task.
func NewExpiryNoticeTask(days int) (*asynq.Task, error) {
	data, err := json.Marshal(ExpiryNoticePayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPasswordExpiryNotice, data), nil
}

// ExpiringUsers finds active users whose password expires in [from, to).
type ExpiringUsers interface {
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]users.User, error)
}

// MailEnqueuer queues outgoing mail.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExpiryNoticeJob enqueues one mail per user whose password is about to
// expire. Task ids are per user and day so reruns do not duplicate mail.
type ExpiryNoticeJob struct {
	Users   ExpiringUsers
	Mail    MailEnqueuer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewExpiryNoticeJob initialises the expiry notice handler.
func NewExpiryNoticeJob(finder ExpiringUsers, mail MailEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpiryNoticeJob {
	return &ExpiryNoticeJob{
		Users:   finder,
		Mail:    mail,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one notice run.
func (j *ExpiryNoticeJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Users == nil || j.Mail == nil {
		return errors.New("expiry notice: handler not configured")
	}
	var payload ExpiryNoticePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("expiry notice: decode payload: %w", asynq.SkipRetry)
	}
	if payload.Days <= 0 {
		payload.Days = 7
	}
	tracker := j.Metrics.Track(TaskPasswordExpiryNotice)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.clock()
	logger := j.logger().With(slog.Int("days", payload.Days))
	expiring, err := j.Users.ExpiringBetween(ctx, now, now.AddDate(0, 0, payload.Days))
	if err != nil {
		logger.Error("expiry notice query failed", slog.Any("error", err))
		return err
	}

	var sent int64
	for _, u := range expiring {
		if u.Email == "" || u.PasswordExpiresAt == nil {
			continue
		}
		_, err := j.Mail.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      u.Email,
			Subject: "Your warehouse password expires soon",
			Body:    fmt.Sprintf("Hello %s, your password expires on %s. Please change it before then.", u.Name, u.PasswordExpiresAt.Format("2006-01-02")),
		}, asynq.TaskID(fmt.Sprintf("expiry:%s:%s", u.ID, now.Format("2006-01-02"))))
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			continue
		}
		if err != nil {
			logger.Error("enqueue expiry notice", slog.String("user_id", u.ID), slog.Any("error", err))
			return err
		}
		sent++
	}
	j.Metrics.AddItems(TaskPasswordExpiryNotice, sent)
	logger.Info("expiry notices queued", slog.Int("candidates", len(expiring)), slog.Int64("sent", sent))
	return nil
}

func (j *ExpiryNoticeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
