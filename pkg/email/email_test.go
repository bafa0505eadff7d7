package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Justification for unit tests: derived names end up on reviewer accounts
// and in the audit trail, so the separator and casing rules are load-bearing.

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"dot separated", "jane.doe@example.com", "Jane Doe"},
		{"underscore separated", "marco_rossi@example.com", "Marco Rossi"},
		{"plus tag", "ana+reviews@example.com", "Ana Reviews"},
		{"single part", "reviewer@example.com", "Reviewer"},
		{"no at sign", "compliance.lead", "Compliance Lead"},
		{"separators only", "...@example.com", "Reviewer"},
		{"unicode initial", "élodie.martin@example.com", "Élodie Martin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.email))
		})
	}
}
