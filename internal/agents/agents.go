// Package agents holds the reference verification agents. Each agent reads
// the evidence bundle supplied at intake and produces one typed verification
// result. Expected domain failures (missing document, empty search) surface
// as verified=false with descriptive issues, never as errors; only
// infrastructure failures error, and the run engine converts those.
package agents

import (
	"context"

	id "provenance/pkg/domain"

	"provenance/internal/record"
)

// Agent is the contract every verification agent satisfies. The run engine
// selects an agent by its type and stores whatever Run returns.
type Agent interface {
	Type() id.VerificationType
	Run(ctx context.Context, rec *record.VerificationRecord) (*record.VerificationResult, error)
}
