package core

import (
	"context"
	"sort"
	"strings"
)

// FieldsLogger is the optional structured-fields surface some logger
// implementations expose on top of Logger.
type FieldsLogger interface {
	WithFields(fields map[string]any) Logger
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "info", message, fields)
}

func (s *Service) logWarn(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "warn", message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "error", message, fields)
}

func (s *Service) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

// appendAudit writes one lifecycle event. Audit failures are logged and
// swallowed so the triggering operation still completes.
func (s *Service) appendAudit(ctx context.Context, event AuditEvent) {
	if s == nil || s.historyStore == nil {
		return
	}
	if strings.TrimSpace(event.EventSource) == "" {
		event.EventSource = s.config.AuditSource
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if err := s.historyStore.Append(ctx, event); err != nil {
		s.logError(ctx, "audit append failed", map[string]any{
			"user_key":   event.UserKey,
			"service":    event.Service,
			"account_id": event.AccountID,
			"event_type": string(event.EventType),
			"error":      err.Error(),
		})
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
