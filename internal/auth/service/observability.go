package service

import (
	"context"

	"trustbridge/pkg/requestcontext"
)

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) authFailure(ctx context.Context, reason string, attributes ...any) {
	s.metrics.IncrementLoginFailures()
	args := append(attributes,
		"reason", reason,
		"client_ip", requestcontext.ClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logger.WarnContext(ctx, "login failed", args...)
}
