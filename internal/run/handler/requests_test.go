package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"provenance/internal/record"
)

// StartRunRequestSuite tests StartRunRequest validation and normalization.
type StartRunRequestSuite struct {
	suite.Suite
}

func TestStartRunRequestSuite(t *testing.T) {
	suite.Run(t, new(StartRunRequestSuite))
}

func (s *StartRunRequestSuite) validRequest() *StartRunRequest {
	return &StartRunRequest{
		ClientID:   "CLT-2001",
		ClientName: "John Doe",
		IDDocument: &record.IDDocument{
			DocumentType: "passport",
			FullName:     "John Doe",
			ExpiryDate:   "2031-04-15",
		},
		SearchTerms: []string{"John Doe fintech"},
	}
}

func (s *StartRunRequestSuite) TestValidation() {
	s.Run("valid request passes", func() {
		req := s.validRequest()
		s.NoError(req.Validate())
		s.Equal("CLT-2001", req.ParsedClientID().String())
	})

	s.Run("client id is trimmed", func() {
		req := s.validRequest()
		req.ClientID = "  CLT-2001  "
		s.NoError(req.Validate())
		s.Equal("CLT-2001", req.ParsedClientID().String())
	})

	s.Run("missing client id rejected", func() {
		req := s.validRequest()
		req.ClientID = ""
		err := req.Validate()
		s.Require().Error(err)
		s.Contains(err.Error(), "client id")
	})

	s.Run("missing client name rejected", func() {
		req := s.validRequest()
		req.ClientName = "   "
		err := req.Validate()
		s.Require().Error(err)
		s.Contains(err.Error(), "client_name is required")
	})

	s.Run("client name exceeding max length rejected", func() {
		req := s.validRequest()
		req.ClientName = strings.Repeat("a", maxClientNameLength+1)
		err := req.Validate()
		s.Require().Error(err)
		s.Contains(err.Error(), "client_name")
	})

	s.Run("search terms deduped and trimmed", func() {
		req := s.validRequest()
		req.SearchTerms = []string{" John Doe ", "John Doe", "", "Acme"}
		s.NoError(req.Validate())
		s.Equal([]string{"John Doe", "Acme"}, req.SearchTerms)
	})

	s.Run("too many search terms rejected", func() {
		req := s.validRequest()
		req.SearchTerms = make([]string, maxSearchTerms+1)
		for i := range req.SearchTerms {
			req.SearchTerms[i] = "term-" + strings.Repeat("x", i+1)
		}
		err := req.Validate()
		s.Require().Error(err)
		s.Contains(err.Error(), "search terms")
	})

	s.Run("oversized search term rejected", func() {
		req := s.validRequest()
		req.SearchTerms = []string{strings.Repeat("a", maxSearchTermLength+1)}
		err := req.Validate()
		s.Require().Error(err)
		s.Contains(err.Error(), "search term exceeds max length")
	})

	s.Run("documents are optional", func() {
		req := &StartRunRequest{ClientID: "CLT-2002", ClientName: "Jane"}
		s.NoError(req.Validate())
		data := req.Data()
		s.Nil(data.IDDocument)
		s.Nil(data.Payslip)
		s.Nil(data.FinancialProfile)
	})

	s.Run("data carries the documents through", func() {
		req := s.validRequest()
		req.Payslip = &record.PayslipDocument{Employer: "Acme Corp", GrossPay: "8000.00"}
		s.NoError(req.Validate())

		data := req.Data()
		s.Require().NotNil(data.IDDocument)
		s.Equal("passport", data.IDDocument.DocumentType)
		s.Require().NotNil(data.Payslip)
		s.Equal("Acme Corp", data.Payslip.Employer)
		s.Equal([]string{"John Doe fintech"}, data.SearchTerms)
	})
}

// IdentityDecisionRequestSuite tests IdentityDecisionRequest validation.
type IdentityDecisionRequestSuite struct {
	suite.Suite
}

func TestIdentityDecisionRequestSuite(t *testing.T) {
	suite.Run(t, new(IdentityDecisionRequestSuite))
}

func (s *IdentityDecisionRequestSuite) TestValidation() {
	approved := true

	s.Run("approval passes", func() {
		req := &IdentityDecisionRequest{Approved: &approved, Comments: "documents verified"}
		s.NoError(req.Validate())
	})

	s.Run("rejection passes", func() {
		rejected := false
		req := &IdentityDecisionRequest{Approved: &rejected}
		s.NoError(req.Validate())
	})

	s.Run("missing approved rejected", func() {
		req := &IdentityDecisionRequest{Comments: "no verdict"}
		err := req.Validate()
		s.Require().Error(err)
		s.Contains(err.Error(), "approved is required")
	})

	s.Run("comments trimmed", func() {
		req := &IdentityDecisionRequest{Approved: &approved, Comments: "  fine  "}
		s.NoError(req.Validate())
		s.Equal("fine", req.Comments)
	})

	s.Run("oversized comments rejected", func() {
		req := &IdentityDecisionRequest{Approved: &approved, Comments: strings.Repeat("a", maxCommentsLength+1)}
		err := req.Validate()
		s.Require().Error(err)
		s.Contains(err.Error(), "comments")
	})
}
