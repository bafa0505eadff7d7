package handler

import (
	"provenance/internal/record"
	id "provenance/pkg/domain"
)

// StartRunResponse is the HTTP response for POST /v1/runs.
type StartRunResponse struct {
	RunID id.RunID `json:"run_id"`
}

// SummaryResponse is the HTTP response for GET /v1/runs/{runID}/summary.
// RiskAssessment is omitted while the run is summarized but not yet scored.
type SummaryResponse struct {
	Summary        *record.Summary        `json:"verification_summary"`
	RiskAssessment *record.RiskAssessment `json:"risk_assessment,omitempty"`
}
