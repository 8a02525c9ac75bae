package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/agora-qa/agora/internal/auth"
)

// SessionsPurgeJob removes session audit rows whose token lifetime has
// passed. It runs on a cron schedule; the CSRF bindings themselves expire in
// Redis on their own.
type SessionsPurgeJob struct {
	Auth   *auth.Service
	Logger *slog.Logger
}

// NewSessionsPurgeJob initialises the purge handler.
func NewSessionsPurgeJob(authService *auth.Service, logger *slog.Logger) *SessionsPurgeJob {
	return &SessionsPurgeJob{Auth: authService, Logger: logger}
}

// Handle executes one purge run.
func (j *SessionsPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Auth == nil {
		return errors.New("sessions purge: handler not configured")
	}
	logger := j.logger()

	start := time.Now()
	removed, err := j.Auth.PurgeExpiredSessions(ctx)
	if err != nil {
		logger.Error("purge failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed sessions purge",
		slog.Int64("removed", removed),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *SessionsPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeSessionsPurge))
	}
	return slog.Default().With(slog.String("job", TaskTypeSessionsPurge))
}
