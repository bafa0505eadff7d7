package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"provenance/pkg/platform/circuit"

	"provenance/internal/record"
)

// StaticSearcher serves canned mentions keyed by lowercased client name. It
// backs local development and doubles as the degraded-mode fallback when the
// search service circuit is open.
type StaticSearcher struct {
	fixtures map[string][]record.WebMention
}

// NewStaticSearcher creates a searcher over a fixture set. Keys are matched
// case-insensitively against the client name.
func NewStaticSearcher(fixtures map[string][]record.WebMention) *StaticSearcher {
	normalized := make(map[string][]record.WebMention, len(fixtures))
	for name, mentions := range fixtures {
		normalized[strings.ToLower(strings.TrimSpace(name))] = mentions
	}
	return &StaticSearcher{fixtures: normalized}
}

func (s *StaticSearcher) Search(_ context.Context, clientName string, _ []string) ([]record.WebMention, error) {
	return s.fixtures[strings.ToLower(strings.TrimSpace(clientName))], nil
}

// HTTPSearcher queries an external web-search service. It is a thin
// transport binding; mention analysis happens on the service side.
type HTTPSearcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSearcher creates a searcher against a search service base URL. A
// nil client uses http.DefaultClient.
func NewHTTPSearcher(baseURL string, client *http.Client) *HTTPSearcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSearcher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPSearcher) Search(ctx context.Context, clientName string, terms []string) ([]record.WebMention, error) {
	query := url.Values{"client": {clientName}}
	for _, term := range terms {
		query.Add("term", term)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("web search: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Mentions []record.WebMention `json:"mentions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("web search: decode response: %w", err)
	}
	return body.Mentions, nil
}

// FallbackSearcher probes a primary searcher through a circuit breaker and
// serves from the fallback while the primary is unhealthy. The primary is
// always probed, so the circuit closes again on its own once the service
// recovers.
type FallbackSearcher struct {
	primary  Searcher
	fallback Searcher
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackSearcher(primary, fallback Searcher, breaker *circuit.Breaker, logger *slog.Logger) *FallbackSearcher {
	return &FallbackSearcher{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (s *FallbackSearcher) Search(ctx context.Context, clientName string, terms []string) ([]record.WebMention, error) {
	mentions, err := s.primary.Search(ctx, clientName, terms)
	if err != nil {
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened && s.logger != nil {
			s.logger.WarnContext(ctx, "search circuit opened, serving fallback results",
				slog.String("breaker", s.breaker.Name()),
				slog.String("error", err.Error()))
		}
		if !useFallback {
			return nil, err
		}
		return s.fallback.Search(ctx, clientName, terms)
	}

	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed && s.logger != nil {
		s.logger.InfoContext(ctx, "search circuit closed, primary healthy again",
			slog.String("breaker", s.breaker.Name()))
	}
	if !usePrimary {
		// Open circuit: even a successful probe serves the fallback until
		// the success threshold closes it, so results stay consistent.
		return s.fallback.Search(ctx, clientName, terms)
	}
	return mentions, nil
}
