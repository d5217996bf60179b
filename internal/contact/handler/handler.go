package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"contactlink/internal/contact/models"
	"contactlink/internal/platform/metrics"
	"contactlink/internal/platform/middleware"
	dErrors "contactlink/pkg/domain-errors"
	"contactlink/pkg/platform/httputil"
)

// maxBodyBytes bounds the identify payload.
const maxBodyBytes = 64 << 10

const defaultRequestTimeout = 10 * time.Second

// Service defines the interface for identity reconciliation.
type Service interface {
	Identify(ctx context.Context, req models.IdentifyRequest) (*models.IdentifyResponse, error)
}

// Handler handles the identify endpoint.
type Handler struct {
	logger  *slog.Logger
	service Service
	metrics *metrics.Metrics
	timeout time.Duration
}

// New creates a new contact Handler. A zero timeout uses 10s.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, timeout time.Duration) *Handler {
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	return &Handler{
		logger:  logger,
		service: service,
		metrics: metrics,
		timeout: timeout,
	}
}

// Register registers the contact routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.RequestTime)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.timeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.Post("/identify", h.handleIdentify)
	})
}

// handleIdentify reconciles the submitted email/phone pair and returns the
// consolidated contact.
func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.IdentifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid identify request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	resp, err := h.service.Identify(ctx, req)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeBadRequest) {
			h.logger.WarnContext(ctx, "identify rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to identify contact",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
