package vault

import (
	"errors"
	"net/http"

	"github.com/congo-pay/custody_vault/internal/access"
	"github.com/congo-pay/custody_vault/internal/gate"
	"github.com/congo-pay/custody_vault/internal/ledger"
	"github.com/congo-pay/custody_vault/internal/registry"
	"github.com/congo-pay/custody_vault/internal/store"
)

// HTTPError is a vault failure translated for the API error envelope.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string { return e.Message }

func (e *HTTPError) Unwrap() error { return e.Err }

// HTTPStatus and ErrorCode let the server error handler render the envelope
// without knowing vault errors.
func (e *HTTPError) HTTPStatus() int   { return e.Status }
func (e *HTTPError) ErrorCode() string { return e.Code }

func badRequest(code, msg string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Code: code, Message: msg}
}

// toHTTPError maps a service error onto its status and stable code.
// AlreadyPaused is tested before EnforcedPause since it matches both.
func toHTTPError(err error) *HTTPError {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, access.ErrInvalidAccount):
		status, code = http.StatusBadRequest, "invalid_account"
	case errors.Is(err, gate.ErrAlreadyPaused):
		status, code = http.StatusConflict, "already_paused"
	case errors.Is(err, gate.ErrEnforcedPause):
		status, code = http.StatusLocked, "enforced_pause"
	case errors.Is(err, gate.ErrNotPaused):
		status, code = http.StatusConflict, "not_paused"
	case errors.Is(err, registry.ErrNotWhitelisted):
		status, code = http.StatusUnprocessableEntity, "not_whitelisted"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status, code = http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, ledger.ErrOverflow):
		status, code = http.StatusUnprocessableEntity, "overflow"
	case errors.Is(err, ledger.ErrZeroAmount):
		status, code = http.StatusBadRequest, "zero_amount"
	case errors.Is(err, ErrTransferFailed):
		status, code = http.StatusUnprocessableEntity, "transfer_failed"
	case errors.Is(err, ErrCommitFailed):
		status, code = http.StatusInternalServerError, "commit_failed"
	case errors.Is(err, store.ErrNotInitialized):
		status, code = http.StatusServiceUnavailable, "not_initialized"
	}
	msg := err.Error()
	if status == http.StatusInternalServerError && code == "internal" {
		msg = "internal error"
	}
	return &HTTPError{Status: status, Code: code, Message: msg, Err: err}
}
