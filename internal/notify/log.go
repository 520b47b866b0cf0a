package notify

import (
	"context"
	"log/slog"
)

// LogSender logs messages instead of sending them. Used when no SMTP relay
// is configured.
type LogSender struct {
	logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not sent, smtp is not configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text),
	)
	return nil
}
