package contact

import (
	"log/slog"
	"time"

	"contactlink/internal/contact/handler"
	"contactlink/internal/contact/service"
	platformmetrics "contactlink/internal/platform/metrics"
)

// Service exposes identity reconciliation.
type Service = service.Service

// Handler wires POST /identify to the service.
type Handler = handler.Handler

// NewService constructs the contact service around a unit of work.
func NewService(tx service.ContactStoreTx, opts ...service.Option) (*Service, error) {
	return service.New(tx, opts...)
}

// NewHandler constructs the HTTP handler for the identify route.
func NewHandler(s *Service, logger *slog.Logger, m *platformmetrics.Metrics, timeout time.Duration) *Handler {
	return handler.New(s, logger, m, timeout)
}
