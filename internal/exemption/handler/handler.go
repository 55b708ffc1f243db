// Package handler exposes the exemption engine to the storefront host over
// HTTP. The host forwards lifecycle triggers with its live flag and applies
// the corrected flag returned.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vatguard/internal/exemption/identifier"
	"vatguard/internal/exemption/reconcile"
	"vatguard/internal/platform/metrics"
	"vatguard/internal/platform/middleware"
	dErrors "vatguard/pkg/domain-errors"
	"vatguard/pkg/platform/httputil"
)

// Service defines the exemption operations exposed over HTTP.
type Service interface {
	ValidateIdentifier(ctx context.Context, raw string) identifier.Outcome
	Evaluate(ctx context.Context, in reconcile.Input) reconcile.Evaluation
	Reconcile(ctx context.Context, req reconcile.Request) (*reconcile.Result, error)
	Override(ctx context.Context, current bool, orderID string) bool
	IsFeatureDisabled(ctx context.Context) bool
	EndSession(ctx context.Context, sessionID string) error
}

// Handler handles exemption endpoints.
type Handler struct {
	svc       Service
	logger    *slog.Logger
	metrics   *metrics.Metrics
	hostToken string
	timeout   time.Duration
}

// New creates a Handler. hostToken guards every route when non-empty.
func New(svc Service, logger *slog.Logger, metrics *metrics.Metrics, hostToken string) *Handler {
	return &Handler{
		svc:       svc,
		logger:    logger,
		metrics:   metrics,
		hostToken: hostToken,
		timeout:   10 * time.Second,
	}
}

// Register registers the exemption routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.timeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(h.metrics))
		r.Use(middleware.RequireHostToken(h.hostToken, h.logger))

		r.Post("/v1/identifiers/validate", h.handleValidate)
		r.Post("/v1/exemption/evaluate", h.handleEvaluate)
		r.Post("/v1/exemption/reconcile", h.handleReconcile)
		r.Post("/v1/exemption/override", h.handleOverride)
		r.Get("/v1/exemption/status", h.handleStatus)
		r.Delete("/v1/sessions/{sessionID}", h.handleEndSession)
	})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[validateRequest](r)
	if err != nil {
		h.badRequest(ctx, w, err)
		return
	}

	out := h.svc.ValidateIdentifier(ctx, req.Identifier)
	httputil.WriteJSON(w, http.StatusOK, validateResponse{Outcome: out, Message: out.Reason.Message()})
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[evaluateRequest](r)
	if err != nil {
		h.badRequest(ctx, w, err)
		return
	}

	eval := h.svc.Evaluate(ctx, reconcile.Input{
		Identifier:         req.Identifier,
		BillingCountry:     req.BillingCountry,
		ShippingCountry:    req.ShippingCountry,
		FulfillmentMethods: req.FulfillmentMethods,
	})
	httputil.WriteJSON(w, http.StatusOK, evaluateResponse{
		Exempt:     eval.Verdict.Exempt,
		Rule:       eval.Verdict.Rule,
		Reasons:    reasonsOrEmpty(eval.Verdict.Reasons),
		Validation: eval.Validation,
	})
}

// handleReconcile runs one pass against the host's live flag. The host cannot
// hand us a callback, so a recalculation request is returned as a flag; the
// host recalculates and, if that fires another trigger, calls back with
// nested=true so no second recalculation is requested.
func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[reconcileRequest](r)
	if err != nil {
		h.badRequest(ctx, w, err)
		return
	}
	if req.Nested {
		ctx = reconcile.Nested(ctx)
	}

	live := &liveFlag{exempt: req.Exempt}
	res, err := h.svc.Reconcile(ctx, reconcile.Request{
		Trigger:            req.Trigger,
		SessionID:          req.SessionID,
		CustomerID:         req.CustomerID,
		OrderID:            req.OrderID,
		Identifier:         req.Identifier,
		BillingCountry:     req.BillingCountry,
		ShippingCountry:    req.ShippingCountry,
		FulfillmentMethods: req.FulfillmentMethods,
		Live:               live,
		Recalculate:        func(context.Context) error { return nil },
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeBadRequest) {
			h.badRequest(ctx, w, err)
			return
		}
		h.logger.ErrorContext(ctx, "reconcile failed",
			"request_id", middleware.GetRequestID(ctx),
			"trigger", string(req.Trigger),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reconcile"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reconcileResponse{
		Exempt:      live.exempt,
		Changed:     res.Changed,
		Recalculate: res.Recalculated,
		Source:      res.Source,
		Rule:        res.Verdict.Rule,
		Reasons:     reasonsOrEmpty(res.Verdict.Reasons),
		Warnings:    res.Warnings,
	})
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[overrideRequest](r)
	if err != nil {
		h.badRequest(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overrideResponse{Exempt: h.svc.Override(ctx, req.Current, req.OrderID)})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, statusResponse{Disabled: h.svc.IsFeatureDisabled(r.Context())})
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.svc.EndSession(ctx, sessionID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeBadRequest) {
			h.badRequest(ctx, w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to end session",
			"request_id", middleware.GetRequestID(ctx),
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) badRequest(ctx context.Context, w http.ResponseWriter, err error) {
	h.logger.WarnContext(ctx, "invalid exemption request",
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}
