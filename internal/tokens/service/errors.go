package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownClient   = errors.New("unknown_client")
	ErrSubjectNotFound = errors.New("subject_not_found")
	ErrSubjectInactive = errors.New("subject_inactive")
	ErrInvalidRefresh  = errors.New("invalid_refresh_token")
	ErrUnknownStrategy = errors.New("unknown_claim_strategy")
)

// IssuanceError wraps a failure that happened after the client and subject
// were resolved: revealing the tenant secret or signing a token. It means
// the tenant's policy or this service is misconfigured, not that the caller
// asked for something wrong.
type IssuanceError struct {
	Op       string
	ClientID string
	Err      error
}

func (e *IssuanceError) Error() string {
	return fmt.Sprintf("issuance for %s failed: %s: %v", e.ClientID, e.Op, e.Err)
}

func (e *IssuanceError) Unwrap() error { return e.Err }
