package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"contactlink/internal/contact/lock"
	"contactlink/internal/contact/metrics"
	"contactlink/internal/contact/models"
	"contactlink/internal/contact/ports"
	dErrors "contactlink/pkg/domain-errors"
	"contactlink/pkg/platform/sentinel"
	pkgstrings "contactlink/pkg/platform/strings"
	"contactlink/pkg/requestcontext"
)

var tracer = otel.Tracer("contactlink/internal/contact/service")

// Store is the storage contract reconciliation runs against.
type Store = ports.ContactStore

// Service validates identify requests and runs each reconciliation as one
// unit of work while holding the locks for its identifiers.
type Service struct {
	tx      ContactStoreTx
	locker  ports.Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker replaces the default in-process identifier lock.
func WithLocker(locker ports.Locker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// New constructs a Service.
func New(tx ContactStoreTx, opts ...Option) (*Service, error) {
	if tx == nil {
		return nil, errors.New("contact store transaction is required")
	}
	s := &Service{tx: tx}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Identify resolves the identity behind req and returns its consolidated view.
func (s *Service) Identify(ctx context.Context, req models.IdentifyRequest) (_ *models.IdentifyResponse, err error) {
	ctx, span := tracer.Start(ctx, "contact.Identify")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
	}()

	req.Normalize()
	if req.IsEmpty() {
		s.incrementOutcome("invalid_input")
		return nil, dErrors.New(dErrors.CodeBadRequest, "email or phoneNumber is required")
	}
	email, phone := req.Email, req.PhoneNumber.String()
	start := time.Now()

	unlock, err := s.locker.Lock(ctx, LockKeys(email, phone)...)
	if err != nil {
		s.incrementOutcome("lock_failure")
		return nil, s.translate(ctx, err, "failed to acquire identifier lock")
	}
	defer unlock()

	var result *models.ReconcileResult
	err = s.tx.RunInTx(ctx, func(store ports.ContactStore) error {
		var err error
		result, err = Reconcile(ctx, store, email, phone)
		return err
	})
	if err != nil {
		s.incrementOutcome("storage_failure")
		return nil, s.translate(ctx, err, "storage failure")
	}

	s.incrementOutcome("ok")
	if s.metrics != nil {
		s.metrics.ObserveResult(result, time.Since(start).Seconds())
	}
	span.SetAttributes(
		attribute.Int64("contact.primary_id", result.View.PrimaryID),
		attribute.Int("contact.cluster_size", 1+len(result.View.SecondaryIDs)),
		attribute.Bool("contact.created", result.Created != nil),
	)
	s.logResult(ctx, result)
	return models.NewIdentifyResponse(result.View), nil
}

// LockKeys derives the lock keys for a request. Both identifiers are folded
// the same way the stores match them.
func LockKeys(email, phone string) []string {
	var keys []string
	if v := pkgstrings.Fold(email); v != "" {
		keys = append(keys, "email:"+v)
	}
	if v := pkgstrings.Fold(phone); v != "" {
		keys = append(keys, "phone:"+v)
	}
	return keys
}

func (s *Service) translate(ctx context.Context, err error, msg string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "reconciliation timed out")
	case errors.Is(err, sentinel.ErrConflict):
		s.logger.WarnContext(ctx, msg, requestcontext.LogAttrs(ctx, "error", err.Error())...)
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update, retry the request")
	case errors.Is(err, sentinel.ErrLocked), errors.Is(err, sentinel.ErrUnavailable):
		s.logger.WarnContext(ctx, msg, requestcontext.LogAttrs(ctx, "error", err.Error())...)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	default:
		s.logger.ErrorContext(ctx, msg, requestcontext.LogAttrs(ctx, "error", err.Error())...)
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func (s *Service) logResult(ctx context.Context, result *models.ReconcileResult) {
	if result.Created == nil && len(result.Demoted) == 0 && len(result.Relinked) == 0 {
		s.logger.DebugContext(ctx, "identity unchanged",
			requestcontext.LogAttrs(ctx, "primary_id", result.View.PrimaryID)...)
		return
	}
	attrs := requestcontext.LogAttrs(ctx,
		"primary_id", result.View.PrimaryID,
		"demoted", len(result.Demoted),
		"relinked", len(result.Relinked),
	)
	if result.Created != nil {
		attrs = append(attrs,
			"created_id", result.Created.ID,
			"created_precedence", string(result.Created.LinkPrecedence),
		)
	}
	s.logger.InfoContext(ctx, "identity reconciled", attrs...)
}

func (s *Service) incrementOutcome(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncrementOutcome(outcome)
}
