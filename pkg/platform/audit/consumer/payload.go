package consumer

import (
	"time"

	"github.com/google/uuid"

	id "provenance/pkg/domain"
)

// eventTime parses the outbox timestamp. Relayed events always carry one in
// RFC3339Nano; the consume-time fallback keeps rows from older deployments
// storable instead of rejected.
func eventTime(s string) time.Time {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts
	}
	return time.Now()
}

// runIDOf parses an optional run reference, returning the zero ID when the
// field is absent or not a UUID.
func runIDOf(s string) id.RunID {
	rid, err := uuid.Parse(s)
	if err != nil {
		return id.RunID{}
	}
	return id.RunID(rid)
}
