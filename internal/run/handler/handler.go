package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provenance/internal/platform/middleware"
	"provenance/internal/record"
	"provenance/internal/run"
	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/httputil"
	"provenance/pkg/platform/middleware/version"
	"provenance/pkg/requestcontext"
)

// Service defines the interface for run lifecycle operations.
type Service interface {
	StartRun(ctx context.Context, clientID id.ClientID, clientName string, data record.ClientData) (id.RunID, error)
	Resume(ctx context.Context, runID id.RunID, decision run.Decision) error
	OverrideDataReadiness(ctx context.Context, runID id.RunID, reviewerID id.ReviewerID) error
	GetRun(ctx context.Context, runID id.RunID) (*record.VerificationRecord, error)
}

// Handler wires run lifecycle endpoints to the run manager.
type Handler struct {
	service Service
	logger  *slog.Logger
	tokens  middleware.TokenValidator
}

// New constructs a run handler with its dependencies.
func New(service Service, logger *slog.Logger, tokens middleware.TokenValidator) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		tokens:  tokens,
	}
}

// Register mounts run endpoints on the router. The identity decision and the
// data-readiness override are reviewer actions and sit behind reviewer auth;
// intake and inspection are service-to-service endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/runs", h.handleStartRun)
	r.Get("/runs/{runID}", h.handleGetRun)
	r.Get("/runs/{runID}/summary", h.handleGetSummary)

	r.Group(func(g chi.Router) {
		g.Use(middleware.RequireReviewer(h.tokens, h.logger))
		g.Use(version.ValidateTokenVersion(h.logger))
		g.Post("/runs/{runID}/identity-decision", h.handleIdentityDecision)
		g.Post("/runs/{runID}/data-readiness-override", h.handleDataReadinessOverride)
	})
}

// handleStartRun handles POST /v1/runs.
func (h *Handler) handleStartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[StartRunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	runID, err := h.service.StartRun(ctx, req.ParsedClientID(), req.ClientName, req.Data())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start run",
			"request_id", requestID,
			"client_id", req.ParsedClientID(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "run started",
		"request_id", requestID,
		"run_id", runID,
		"client_id", req.ParsedClientID(),
	)

	httputil.WriteJSON(w, http.StatusCreated, StartRunResponse{RunID: runID})
}

// handleGetRun handles GET /v1/runs/{runID}. The response is the full record:
// it is the documented JSON state document, so no projection is applied.
func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.GetRun(ctx, runID)
	if err != nil {
		h.logError(ctx, "failed to fetch run", runID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rec)
}

// handleGetSummary handles GET /v1/runs/{runID}/summary. Until summarization
// has run the report does not exist, so the endpoint returns 404 rather than
// an empty shell.
func (h *Handler) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.GetRun(ctx, runID)
	if err != nil {
		h.logError(ctx, "failed to fetch run", runID, err)
		httputil.WriteError(w, err)
		return
	}

	if rec.Summary == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "summary not generated yet"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, SummaryResponse{
		Summary:        rec.Summary,
		RiskAssessment: rec.RiskAssessment,
	})
}

// handleIdentityDecision handles POST /v1/runs/{runID}/identity-decision.
// Returns 202: the decision is recorded synchronously but the run resumes on
// the engine's worker pool.
func (h *Handler) handleIdentityDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	// The middleware has already validated the token and set the reviewer in context
	reviewerID := requestcontext.ReviewerID(ctx)
	if reviewerID.IsNil() {
		// This should never happen if RequireReviewer middleware is configured correctly
		h.logger.ErrorContext(ctx, "reviewer id missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[IdentityDecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err = h.service.Resume(ctx, runID, run.Decision{
		Approved:   *req.Approved,
		Comments:   req.Comments,
		ReviewerID: reviewerID,
	})
	if err != nil {
		h.logError(ctx, "failed to apply identity decision", runID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identity decision applied",
		"request_id", requestID,
		"run_id", runID,
		"reviewer_id", reviewerID,
		"approved", *req.Approved,
	)

	w.WriteHeader(http.StatusAccepted)
}

// handleDataReadinessOverride handles
// POST /v1/runs/{runID}/data-readiness-override. The override carries no
// body: it is a bare declaration and the reviewer identity comes from the
// token. Returns 202 because the re-drive happens on the worker pool.
func (h *Handler) handleDataReadinessOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reviewerID := requestcontext.ReviewerID(ctx)
	if reviewerID.IsNil() {
		h.logger.ErrorContext(ctx, "reviewer id missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.OverrideDataReadiness(ctx, runID, reviewerID); err != nil {
		h.logError(ctx, "failed to override data readiness", runID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "data readiness overridden",
		"request_id", requestID,
		"run_id", runID,
		"reviewer_id", reviewerID,
	)

	w.WriteHeader(http.StatusAccepted)
}

// logError logs service failures at a severity matching the error class:
// expected domain rejections log as info, everything else as error.
func (h *Handler) logError(ctx context.Context, msg string, runID id.RunID, err error) {
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"run_id", runID,
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.InfoContext(ctx, msg, args...)
}
