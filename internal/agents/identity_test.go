package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "provenance/pkg/domain"
	"provenance/pkg/requestcontext"

	"provenance/internal/record"
)

// Justification for unit tests: issue strings are matched verbatim by
// reviewers and reports, and the expiry decision depends on the pinned
// request time, not the wall clock.

var agentNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func agentRecord(t *testing.T, data record.ClientData) *record.VerificationRecord {
	t.Helper()
	clientID, err := id.ParseClientID("CLT-1001")
	require.NoError(t, err)
	return record.New(id.NewRunID(), clientID, "John Doe", data, agentNow)
}

func agentCtx() context.Context {
	return requestcontext.WithTime(context.Background(), agentNow)
}

func TestIdentityAgent(t *testing.T) {
	agent := NewIdentityAgent()
	require.Equal(t, id.VerificationIdentity, agent.Type())

	t.Run("no document", func(t *testing.T) {
		res, err := agent.Run(agentCtx(), agentRecord(t, record.ClientData{}))
		require.NoError(t, err, "a missing document is a domain failure, not an error")
		assert.False(t, res.Verified)
		assert.Equal(t, []string{"No ID document found"}, res.Issues)
	})

	t.Run("valid document", func(t *testing.T) {
		rec := agentRecord(t, record.ClientData{IDDocument: &record.IDDocument{
			DocumentType: "passport",
			FullName:     "John Doe",
			DateOfBirth:  "1985-03-12",
			ExpiryDate:   "2030-01-01",
			Nationality:  "GB",
		}})

		res, err := agent.Run(agentCtx(), rec)
		require.NoError(t, err)
		assert.True(t, res.Verified)
		assert.Empty(t, res.Issues)

		fields, err := record.IdentityFieldsOf(res)
		require.NoError(t, err)
		assert.Equal(t, "John Doe", fields.FullName)
		assert.Equal(t, "2030-01-01", fields.ExpiryDate)
	})

	t.Run("expired document", func(t *testing.T) {
		rec := agentRecord(t, record.ClientData{IDDocument: &record.IDDocument{ExpiryDate: "2024-12-31"}})
		res, err := agent.Run(agentCtx(), rec)
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.Equal(t, []string{"ID document has expired"}, res.Issues)
	})

	t.Run("expiry decided against pinned time", func(t *testing.T) {
		rec := agentRecord(t, record.ClientData{IDDocument: &record.IDDocument{ExpiryDate: "2024-12-31"}})
		earlier := requestcontext.WithTime(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		res, err := agent.Run(earlier, rec)
		require.NoError(t, err)
		assert.True(t, res.Verified, "the same document is valid when checked before expiry")
	})

	t.Run("malformed expiry date", func(t *testing.T) {
		rec := agentRecord(t, record.ClientData{IDDocument: &record.IDDocument{ExpiryDate: "31/12/2030"}})
		res, err := agent.Run(agentCtx(), rec)
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.Equal(t, []string{"Invalid expiry date format"}, res.Issues)
	})

	t.Run("missing expiry date", func(t *testing.T) {
		rec := agentRecord(t, record.ClientData{IDDocument: &record.IDDocument{DocumentType: "passport"}})
		res, err := agent.Run(agentCtx(), rec)
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.Equal(t, []string{"No expiry date found"}, res.Issues)
	})
}
