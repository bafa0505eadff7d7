package agents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "provenance/pkg/domain"
	"provenance/pkg/platform/circuit"

	"provenance/internal/record"
)

type searcherFunc func(ctx context.Context, clientName string, terms []string) ([]record.WebMention, error)

func (f searcherFunc) Search(ctx context.Context, clientName string, terms []string) ([]record.WebMention, error) {
	return f(ctx, clientName, terms)
}

func TestWebReferencesAgent(t *testing.T) {
	t.Run("mentions found", func(t *testing.T) {
		searcher := NewStaticSearcher(map[string][]record.WebMention{
			"John Doe": {
				{Source: "linkedin", Details: "profile lists Global Bank Ltd", Analysis: &record.MentionAnalysis{
					Company:   "Global Bank Ltd",
					RiskFlags: []string{"negative news article"},
				}},
				{Source: "news", Details: "industry conference"},
			},
		})
		agent := NewWebReferencesAgent(searcher)
		require.Equal(t, id.VerificationWebReferences, agent.Type())

		rec := agentRecord(t, record.ClientData{SearchTerms: []string{"Global Bank Ltd", "John Doe"}})
		res, err := agent.Run(agentCtx(), rec)
		require.NoError(t, err)
		assert.True(t, res.Verified)
		assert.Empty(t, res.Issues)

		fields, err := record.WebReferencesFieldsOf(res)
		require.NoError(t, err)
		require.Len(t, fields.Mentions, 2)
		assert.Equal(t, []string{"negative news article"}, fields.RiskFlags)
		assert.Equal(t, []string{"John Doe", "Global Bank Ltd"}, fields.SearchTerms,
			"client name leads and duplicates collapse")
	})

	t.Run("zero mentions is a domain failure", func(t *testing.T) {
		agent := NewWebReferencesAgent(NewStaticSearcher(nil))
		res, err := agent.Run(agentCtx(), agentRecord(t, record.ClientData{}))
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.Equal(t, []string{"No web references found"}, res.Issues)

		fields, err := record.WebReferencesFieldsOf(res)
		require.NoError(t, err)
		assert.Empty(t, fields.Mentions)
	})

	t.Run("searcher error propagates", func(t *testing.T) {
		boom := errors.New("search backend down")
		agent := NewWebReferencesAgent(searcherFunc(func(context.Context, string, []string) ([]record.WebMention, error) {
			return nil, boom
		}))
		_, err := agent.Run(agentCtx(), agentRecord(t, record.ClientData{}))
		assert.ErrorIs(t, err, boom)
	})
}

func TestHTTPSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "John Doe", r.URL.Query().Get("client"))
		assert.Contains(t, r.URL.Query()["term"], "Global Bank Ltd")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"mentions":[{"source":"news","details":"John Doe at Global Bank Ltd"}]}`))
	}))
	defer srv.Close()

	s := NewHTTPSearcher(srv.URL, srv.Client())
	mentions, err := s.Search(context.Background(), "John Doe", []string{"John Doe", "Global Bank Ltd"})
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, "news", mentions[0].Source)
}

func TestHTTPSearcherBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPSearcher(srv.URL, srv.Client()).Search(context.Background(), "John Doe", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestFallbackSearcher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fallback := NewStaticSearcher(map[string][]record.WebMention{
		"John Doe": {{Source: "cache", Details: "cached mention"}},
	})

	t.Run("failures below threshold propagate", func(t *testing.T) {
		primary := searcherFunc(func(context.Context, string, []string) ([]record.WebMention, error) {
			return nil, errors.New("timeout")
		})
		s := NewFallbackSearcher(primary, fallback, circuit.New("search", circuit.WithFailureThreshold(3)), logger)

		_, err := s.Search(context.Background(), "John Doe", nil)
		assert.Error(t, err, "a healthy circuit trusts the primary's error")
	})

	t.Run("open circuit serves fallback", func(t *testing.T) {
		primary := searcherFunc(func(context.Context, string, []string) ([]record.WebMention, error) {
			return nil, errors.New("timeout")
		})
		s := NewFallbackSearcher(primary, fallback, circuit.New("search", circuit.WithFailureThreshold(2)), logger)

		_, err := s.Search(context.Background(), "John Doe", nil)
		require.Error(t, err)

		mentions, err := s.Search(context.Background(), "John Doe", nil)
		require.NoError(t, err, "threshold reached, fallback takes over")
		require.Len(t, mentions, 1)
		assert.Equal(t, "cache", mentions[0].Source)
	})

	t.Run("circuit closes after enough successful probes", func(t *testing.T) {
		healthy := false
		primary := searcherFunc(func(context.Context, string, []string) ([]record.WebMention, error) {
			if !healthy {
				return nil, errors.New("timeout")
			}
			return []record.WebMention{{Source: "live", Details: "fresh mention"}}, nil
		})
		s := NewFallbackSearcher(primary, fallback,
			circuit.New("search", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(2)), logger)

		_, err := s.Search(context.Background(), "John Doe", nil)
		require.NoError(t, err, "single failure opens the one-strike circuit, fallback serves")

		healthy = true
		mentions, err := s.Search(context.Background(), "John Doe", nil)
		require.NoError(t, err)
		assert.Equal(t, "cache", mentions[0].Source, "still open: successful probe counts but fallback serves")

		mentions, err = s.Search(context.Background(), "John Doe", nil)
		require.NoError(t, err)
		assert.Equal(t, "live", mentions[0].Source, "second success closes the circuit")
	})
}
