// Package jobs runs background work over Asynq: outbound mail, periodic
// cleanup of expired rows and exchange-rate cache warmup.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splitbook/splitbook/internal/currency"
	"github.com/splitbook/splitbook/internal/mail"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	TaskTypeSendEmail          = "mail:send"
	TaskTypeCleanupSessions    = "cleanup:sessions"
	TaskTypeCleanupResets      = "cleanup:reset_intentions"
	TaskTypeCleanupConnections = "cleanup:connection_intentions"
	TaskTypeFXWarmup           = "fx:warmup"
)

// Connection proposals left unanswered this long are dropped.
const staleConnectionAge = 30 * 24 * time.Hour

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

// Tasks bundles the task handlers with their dependencies.
type Tasks struct {
	logger  *slog.Logger
	pool    *pgxpool.Pool
	sender  mail.Sender
	fx      *currency.Service
	fxBases []string
}

// NewTasks constructs the handler set.
func NewTasks(logger *slog.Logger, pool *pgxpool.Pool, sender mail.Sender, fx *currency.Service, fxBases []string) *Tasks {
	return &Tasks{logger: logger, pool: pool, sender: sender, fx: fx, fxBases: fxBases}
}

// HandleSendEmail processes mail:send tasks.
func (t *Tasks) HandleSendEmail(ctx context.Context, task *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := t.sender.Send(payload.To, payload.Subject, payload.Body); err != nil {
		t.logger.Error("send mail", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	t.logger.Info("mail sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}

// HandleCleanupSessions deletes expired sessions.
func (t *Tasks) HandleCleanupSessions(ctx context.Context, _ *asynq.Task) error {
	tag, err := t.pool.Exec(ctx, `DELETE FROM sessions WHERE expires < now()`)
	if err != nil {
		return err
	}
	t.logger.Info("expired sessions removed", slog.Int64("count", tag.RowsAffected()))
	return nil
}

// HandleCleanupResets deletes expired reset-password intentions.
func (t *Tasks) HandleCleanupResets(ctx context.Context, _ *asynq.Task) error {
	tag, err := t.pool.Exec(ctx, `DELETE FROM reset_password_intentions WHERE expires < now()`)
	if err != nil {
		return err
	}
	t.logger.Info("expired reset intentions removed", slog.Int64("count", tag.RowsAffected()))
	return nil
}

// HandleCleanupConnections deletes stale connection proposals.
func (t *Tasks) HandleCleanupConnections(ctx context.Context, _ *asynq.Task) error {
	tag, err := t.pool.Exec(ctx,
		`DELETE FROM account_connection_intentions
		 WHERE created < now() - make_interval(secs => $1)`,
		staleConnectionAge.Seconds())
	if err != nil {
		return err
	}
	t.logger.Info("stale connection intentions removed", slog.Int64("count", tag.RowsAffected()))
	return nil
}

// HandleFXWarmup refreshes the cached rates for the configured bases.
func (t *Tasks) HandleFXWarmup(ctx context.Context, _ *asynq.Task) error {
	if t.fx == nil || len(t.fxBases) == 0 {
		return nil
	}
	if err := t.fx.Warm(ctx, t.fxBases); err != nil {
		t.logger.Error("fx warmup", slog.Any("error", err))
		return err
	}
	t.logger.Info("fx cache warmed", slog.Int("bases", len(t.fxBases)))
	return nil
}
