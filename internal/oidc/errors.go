package oidc

import "fmt"

// ValidationErrorCode identifies why a token did not validate.
type ValidationErrorCode string

const (
	ValidationErrorInvalidToken     ValidationErrorCode = "invalid_token"
	ValidationErrorExpired          ValidationErrorCode = "expired_token"
	ValidationErrorNotYetValid      ValidationErrorCode = "not_yet_valid"
	ValidationErrorClaimMismatch    ValidationErrorCode = "claim_mismatch"
	ValidationErrorMalformedToken   ValidationErrorCode = "malformed_token"
	ValidationErrorIssuerMismatch   ValidationErrorCode = "issuer_mismatch"
	ValidationErrorAudienceMismatch ValidationErrorCode = "audience_mismatch"
	ValidationErrorTypeMismatch     ValidationErrorCode = "type_mismatch"
	ValidationErrorAZPMismatch      ValidationErrorCode = "authorized_party_mismatch"

	// ValidationErrorJWKSUnavailable means the signing keys could not be retrieved.
	// It says nothing about the token itself.
	ValidationErrorJWKSUnavailable ValidationErrorCode = "jwks_unavailable"
)

// ValidationError is returned for every failed validation. Description is safe to log;
// Err holds the underlying library or transport error, if any.
type ValidationError struct {
	Code        ValidationErrorCode
	Description string
	Err         error
}

func newValidationError(code ValidationErrorCode, description string, err error) *ValidationError {
	return &ValidationError{Code: code, Description: description, Err: err}
}

func (e *ValidationError) Error() string {
	msg := "oidc: " + string(e.Code)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the token itself was refused, as opposed to the validator
// being unable to check it.
func (e *ValidationError) Rejected() bool {
	return e.Code != ValidationErrorJWKSUnavailable
}
