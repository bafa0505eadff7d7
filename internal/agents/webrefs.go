package agents

import (
	"context"

	id "provenance/pkg/domain"
	pstrings "provenance/pkg/platform/strings"

	"provenance/internal/record"
)

// Web references issue strings.
const (
	IssueNoWebReferences = "No web references found"
)

// Searcher finds public web mentions of a client. Implementations wrap a
// search transport; the agent owns turning mentions into a result.
type Searcher interface {
	Search(ctx context.Context, clientName string, terms []string) ([]record.WebMention, error)
}

// WebReferencesAgent collects public mentions of the client. Zero mentions
// is a domain failure (the planner falls back to financial reports); a
// searcher error is an infrastructure failure and propagates.
type WebReferencesAgent struct {
	searcher Searcher
}

func NewWebReferencesAgent(searcher Searcher) *WebReferencesAgent {
	return &WebReferencesAgent{searcher: searcher}
}

func (a *WebReferencesAgent) Type() id.VerificationType {
	return id.VerificationWebReferences
}

func (a *WebReferencesAgent) Run(ctx context.Context, rec *record.VerificationRecord) (*record.VerificationResult, error) {
	terms := pstrings.DedupeAndTrim(append([]string{rec.ClientName}, rec.ClientData.SearchTerms...))

	mentions, err := a.searcher.Search(ctx, rec.ClientName, terms)
	if err != nil {
		return nil, err
	}

	// Per-mention risk flags roll up onto the result so the summarizer does
	// not have to walk mention analyses.
	var riskFlags []string
	for _, mention := range mentions {
		if mention.Analysis != nil {
			riskFlags = append(riskFlags, mention.Analysis.RiskFlags...)
		}
	}
	riskFlags = pstrings.DedupeAndTrim(riskFlags)

	fields, err := (record.WebReferencesFields{
		Mentions:    mentions,
		RiskFlags:   riskFlags,
		SearchTerms: terms,
	}).AsMap()
	if err != nil {
		return nil, err
	}

	if len(mentions) == 0 {
		return &record.VerificationResult{
			Verified: false,
			Issues:   []string{IssueNoWebReferences},
			Fields:   fields,
		}, nil
	}

	return &record.VerificationResult{
		Verified: true,
		Fields:   fields,
	}, nil
}
