package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provenance/internal/platform/middleware"
	"provenance/internal/record"
	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/httputil"
	"provenance/pkg/platform/middleware/version"
	"provenance/pkg/requestcontext"
)

// Service defines the interface for reviewer worklist operations.
type Service interface {
	ListOpenReviews(ctx context.Context) ([]record.QueuedReview, error)
	SubmitReviewResponse(ctx context.Context, runID id.RunID, resp record.ReviewResponse) error
}

// Handler wires the reviewer worklist endpoints to the run manager.
type Handler struct {
	service Service
	logger  *slog.Logger
	tokens  middleware.TokenValidator
}

// New constructs a review handler with its dependencies.
func New(service Service, logger *slog.Logger, tokens middleware.TokenValidator) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		tokens:  tokens,
	}
}

// Register mounts the review endpoints on the router. The worklist exposes
// client identities and verification issues, so every route requires a
// reviewer token.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.RequireReviewer(h.tokens, h.logger))
		g.Use(version.ValidateTokenVersion(h.logger))
		g.Get("/reviews", h.handleListReviews)
		g.Post("/runs/{runID}/reviews/{type}", h.handleSubmitResponse)
	})
}

// ReviewListResponse is the HTTP response for GET /v1/reviews.
type ReviewListResponse struct {
	Reviews []record.QueuedReview `json:"reviews"`
}

// handleListReviews handles GET /v1/reviews?status=pending. Only the pending
// worklist is queryable; resolved items live on their run's record.
func (h *Handler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if status := r.URL.Query().Get("status"); status != "" && status != string(id.ReviewPending) {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unsupported status %q: only %q is queryable", status, id.ReviewPending))
		return
	}

	reviews, err := h.service.ListOpenReviews(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list open reviews",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if reviews == nil {
		reviews = []record.QueuedReview{}
	}
	httputil.WriteJSON(w, http.StatusOK, ReviewListResponse{Reviews: reviews})
}

// handleSubmitResponse handles POST /v1/runs/{runID}/reviews/{type}.
// Returns 202: the response is recorded synchronously, but merging it into
// the record happens when the run is next driven.
func (h *Handler) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
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

	vType, err := id.ParseVerificationType(chi.URLParam(r, "type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[ReviewResponseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err = h.service.SubmitReviewResponse(ctx, runID, record.ReviewResponse{
		Type:       vType,
		Approved:   *req.Approved,
		Comments:   req.Comments,
		ReviewerID: reviewerID,
		ReceivedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		args := []any{
			"request_id", requestID,
			"run_id", runID,
			"verification_type", vType,
			"error", err,
		}
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to submit review response", args...)
		} else {
			h.logger.InfoContext(ctx, "review response rejected", args...)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "review response received",
		"request_id", requestID,
		"run_id", runID,
		"verification_type", vType,
		"reviewer_id", reviewerID,
		"approved", *req.Approved,
	)

	w.WriteHeader(http.StatusAccepted)
}
