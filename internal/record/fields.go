package record

import (
	"bytes"
	"encoding/json"

	dErrors "provenance/pkg/domain-errors"
)

// Typed views over VerificationResult.Fields. The record stores fields as a
// plain map so the whole document stays JSON-portable; agents and consumers
// go through these structs instead of poking at raw keys. Conversion is a
// JSON round-trip, so a record loaded from disk and one built in memory
// behave identically.

// IdentityFields is the typed payload of an identity check result.
type IdentityFields struct {
	FullName       string   `json:"full_name,omitempty"`
	DocumentType   string   `json:"document_type,omitempty"`
	DateOfBirth    string   `json:"date_of_birth,omitempty"`
	ExpiryDate     string   `json:"expiry_date,omitempty"`
	DocumentNumber string   `json:"document_number,omitempty"`
	Nationality    string   `json:"nationality,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// PayslipFields is the typed payload of a payslip check result. Monetary
// amounts are decimal strings; MonthlyIncome is the frequency-normalized
// figure used by corroboration.
type PayslipFields struct {
	EmployeeName  string   `json:"employee_name,omitempty"`
	Employer      string   `json:"employer,omitempty"`
	Position      string   `json:"position,omitempty"`
	GrossPay      string   `json:"gross_pay,omitempty"`
	NetPay        string   `json:"net_pay,omitempty"`
	PayFrequency  string   `json:"pay_frequency,omitempty"`
	MonthlyIncome string   `json:"monthly_income,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// WebMention is one discovered web reference, kept in discovery order.
type WebMention struct {
	Source   string           `json:"source"`
	Title    string           `json:"title,omitempty"`
	URL      string           `json:"url,omitempty"`
	Date     string           `json:"date,omitempty"`
	Details  string           `json:"details,omitempty"`
	Analysis *MentionAnalysis `json:"analysis,omitempty"`
}

// MentionAnalysis carries extracted employment signals for one mention.
type MentionAnalysis struct {
	Company   string   `json:"company,omitempty"`
	Position  string   `json:"position,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`
	RiskFlags []string `json:"risk_flags,omitempty"`
}

// WebReferencesFields is the typed payload of a web references check result.
type WebReferencesFields struct {
	Mentions    []WebMention `json:"mentions"`
	RiskFlags   []string     `json:"risk_flags,omitempty"`
	SearchTerms []string     `json:"search_terms,omitempty"`
}

// FinancialFields is the typed payload of a financial reports check result.
type FinancialFields struct {
	EstimatedAnnualIncome string   `json:"estimated_annual_income,omitempty"` // "min - max" range
	NetWorth              string   `json:"net_worth,omitempty"`
	SourceOfWealth        string   `json:"source_of_wealth,omitempty"`
	Warnings              []string `json:"warnings,omitempty"`
}

// fieldsToMap converts a typed payload into the map form stored on the
// record.
func fieldsToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode result fields")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode result fields")
	}
	return m, nil
}

// fieldsFromMap converts the stored map form back into a typed payload.
// Numbers decode without float conversion so decimal strings survive intact.
func fieldsFromMap(fields map[string]any, out any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode result fields")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode result fields")
	}
	return nil
}

// AsMap returns the map form of the payload for storage on a result.
func (f IdentityFields) AsMap() (map[string]any, error) { return fieldsToMap(f) }

// AsMap returns the map form of the payload for storage on a result.
func (f PayslipFields) AsMap() (map[string]any, error) { return fieldsToMap(f) }

// AsMap returns the map form of the payload for storage on a result.
func (f WebReferencesFields) AsMap() (map[string]any, error) { return fieldsToMap(f) }

// AsMap returns the map form of the payload for storage on a result.
func (f FinancialFields) AsMap() (map[string]any, error) { return fieldsToMap(f) }

// IdentityFieldsOf parses the typed identity payload from a result. A nil
// result or empty fields map yields the zero value.
func IdentityFieldsOf(r *VerificationResult) (IdentityFields, error) {
	var f IdentityFields
	if r == nil || r.Fields == nil {
		return f, nil
	}
	err := fieldsFromMap(r.Fields, &f)
	return f, err
}

// PayslipFieldsOf parses the typed payslip payload from a result.
func PayslipFieldsOf(r *VerificationResult) (PayslipFields, error) {
	var f PayslipFields
	if r == nil || r.Fields == nil {
		return f, nil
	}
	err := fieldsFromMap(r.Fields, &f)
	return f, err
}

// WebReferencesFieldsOf parses the typed web references payload from a result.
func WebReferencesFieldsOf(r *VerificationResult) (WebReferencesFields, error) {
	var f WebReferencesFields
	if r == nil || r.Fields == nil {
		return f, nil
	}
	err := fieldsFromMap(r.Fields, &f)
	return f, err
}

// FinancialFieldsOf parses the typed financial payload from a result.
func FinancialFieldsOf(r *VerificationResult) (FinancialFields, error) {
	var f FinancialFields
	if r == nil || r.Fields == nil {
		return f, nil
	}
	err := fieldsFromMap(r.Fields, &f)
	return f, err
}

// ResultWarnings extracts the warnings list from a result's fields without
// needing the type-specific struct.
func ResultWarnings(r *VerificationResult) []string {
	if r == nil || r.Fields == nil {
		return nil
	}
	raw, ok := r.Fields["warnings"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	warnings := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			warnings = append(warnings, s)
		}
	}
	return warnings
}

// SummaryStatus is the per-type entry in the summary's verification_status
// map. It serializes as either a bool (check ran or is expected) or the
// string "Not Required" (plan never demanded the check).
type SummaryStatus struct {
	NotRequired bool
	Verified    bool
}

// notRequiredJSON is the wire form of a plan-exempted check.
const notRequiredJSON = `"Not Required"`

// MarshalJSON emits a bool or "Not Required".
func (s SummaryStatus) MarshalJSON() ([]byte, error) {
	if s.NotRequired {
		return []byte(notRequiredJSON), nil
	}
	return json.Marshal(s.Verified)
}

// UnmarshalJSON accepts a bool or "Not Required".
func (s *SummaryStatus) UnmarshalJSON(b []byte) error {
	if string(b) == notRequiredJSON {
		*s = SummaryStatus{NotRequired: true}
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid verification status value")
	}
	*s = SummaryStatus{Verified: v}
	return nil
}

// StatusVerified builds the bool form of a summary status.
func StatusVerified(v bool) SummaryStatus {
	return SummaryStatus{Verified: v}
}

// StatusNotRequired builds the "Not Required" form of a summary status.
func StatusNotRequired() SummaryStatus {
	return SummaryStatus{NotRequired: true}
}
