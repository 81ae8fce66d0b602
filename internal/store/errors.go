package store

import "errors"

var (
	ErrSectorNotFound       = errors.New("sector not found")
	ErrServicePointNotFound = errors.New("service point not found")
	ErrClientNotFound       = errors.New("client not found")
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrOperationNotFound    = errors.New("operation not found")
	ErrTreatmentNotFound    = errors.New("treatment not found")

	ErrTicketClosed          = errors.New("ticket already in terminal state")
	ErrServicePointBusy      = errors.New("service point already has an active operation")
	ErrUserBusy              = errors.New("user already has an active operation")
	ErrOperationNotOperating = errors.New("operation is not operating")
	ErrOperationNotPaused    = errors.New("operation is not paused")
	ErrOperationFinished     = errors.New("operation already finished")
	ErrTreatmentOpen         = errors.New("operation has a treatment in service")
	ErrTreatmentClosed       = errors.New("treatment already in terminal state")
	ErrDuplicateClient       = errors.New("register number already exists")
	ErrInvalidState          = errors.New("state does not allow this action")
	ErrRequestIDReused       = errors.New("request_id already used by a different action")

	// ErrConcurrencyConflict surfaces only after the internal retry budget for
	// serialization failures is exhausted.
	ErrConcurrencyConflict = errors.New("concurrent update conflict, try again")
)
