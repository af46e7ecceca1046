// Package notify delivers approver-facing messages. The default
// implementation writes them to the structured log; deployments wire a
// real channel (chat, email) by implementing action.Notifier.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier records every message in the structured log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the message at info level
func (n *LogNotifier) Send(ctx context.Context, target, title, message string, metadata map[string]string) error {
	fields := []zap.Field{
		zap.String("target", target),
		zap.String("title", title),
		zap.String("message", message),
	}
	for k, v := range metadata {
		fields = append(fields, zap.String(k, v))
	}
	n.logger.Info("Notification", fields...)
	return nil
}
