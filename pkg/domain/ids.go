package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "provenance/pkg/domain-errors"
)

// Typed IDs prevent cross-entity assignment at compile time. A RunID can
// never be passed where a ReviewerID is expected.
//
// Invariant: IDs must be valid, non-empty, non-nil UUIDs. Construct via
// the Parse* functions at trust boundaries; direct casting bypasses
// validation and is reserved for values already proven valid (e.g. rows
// read back from our own store).

// RunID identifies one verification run for one client.
type RunID uuid.UUID

// ReviewItemID identifies a single queued human review item.
type ReviewItemID uuid.UUID

// ReviewerID identifies a human reviewer account.
type ReviewerID uuid.UUID

// NewRunID returns a fresh random RunID.
func NewRunID() RunID {
	return RunID(uuid.New())
}

// NewReviewItemID returns a fresh random ReviewItemID.
func NewReviewItemID() ReviewItemID {
	return ReviewItemID(uuid.New())
}

// NewReviewerID returns a fresh random ReviewerID.
func NewReviewerID() ReviewerID {
	return ReviewerID(uuid.New())
}

// ParseRunID validates and returns a RunID.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil
// UUID; no other errors are expected.
func ParseRunID(s string) (RunID, error) {
	id, err := parseUUID(s, "run id")
	return RunID(id), err
}

// ParseReviewItemID validates and returns a ReviewItemID.
func ParseReviewItemID(s string) (ReviewItemID, error) {
	id, err := parseUUID(s, "review item id")
	return ReviewItemID(id), err
}

// ParseReviewerID validates and returns a ReviewerID.
func ParseReviewerID(s string) (ReviewerID, error) {
	id, err := parseUUID(s, "reviewer id")
	return ReviewerID(id), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", label)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", label)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", label)
	}
	return id, nil
}

func (id RunID) String() string        { return uuid.UUID(id).String() }
func (id ReviewItemID) String() string { return uuid.UUID(id).String() }
func (id ReviewerID) String() string   { return uuid.UUID(id).String() }

func (id RunID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ReviewItemID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ReviewerID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// MarshalText implements encoding.TextMarshaler so IDs serialize as their
// canonical UUID string in JSON documents and map keys.
func (id RunID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText accepts only valid non-nil UUIDs.
func (id *RunID) UnmarshalText(b []byte) error {
	parsed, err := ParseRunID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ReviewItemID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ReviewItemID) UnmarshalText(b []byte) error {
	parsed, err := ParseReviewItemID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ReviewerID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ReviewerID) UnmarshalText(b []byte) error {
	parsed, err := ParseReviewerID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ClientID identifies the client whose source of wealth is being verified.
// It is an opaque identifier assigned by the onboarding system, not a UUID.
//
// Invariant: non-empty after trimming, at most 256 bytes.
type ClientID string

const maxClientIDLen = 256

// ParseClientID constructs a ClientID from external input.
//
// Errors: CodeInvalidInput when the value is empty, whitespace-only, or
// oversized.
func ParseClientID(s string) (ClientID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "client id cannot be empty")
	}
	if len(trimmed) > maxClientIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "client id too long")
	}
	return ClientID(trimmed), nil
}

// String returns the string representation of the client id.
func (c ClientID) String() string { return string(c) }

// IsNil returns true if the client id is empty.
func (c ClientID) IsNil() bool { return c == "" }
