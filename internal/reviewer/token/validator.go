package token

import (
	"provenance/internal/platform/middleware"
	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
)

// ToMiddlewareClaims converts raw JWT claims into the typed claims the
// transport middleware consumes. An absent version claim stays unset; the
// version middleware treats it as v1.
func ToMiddlewareClaims(claims *Claims) (*middleware.TokenClaims, error) {
	reviewerID, err := id.ParseReviewerID(claims.ReviewerID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	var version id.APIVersion
	if claims.APIVersion != "" {
		version, err = id.ParseAPIVersion(claims.APIVersion)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
		}
	}
	return &middleware.TokenClaims{
		ReviewerID: reviewerID,
		APIVersion: version,
	}, nil
}

// Validator adapts Service to the middleware.TokenValidator contract.
type Validator struct {
	service *Service
}

func NewValidator(service *Service) *Validator {
	return &Validator{service: service}
}

func (v *Validator) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
