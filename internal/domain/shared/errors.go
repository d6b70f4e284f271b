package shared

// DomainError is an error with a stable machine-readable code. The HTTP
// layer maps codes to response statuses; Error returns only the message.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a domain error with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Sentinel errors shared across the ledger and reconciliation services.
// Compare with errors.Is or errors.As; services may wrap them with context.
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrExceedsOutstanding  = NewDomainError("EXCEEDS_OUTSTANDING", "Amount exceeds the invoice outstanding balance")
	ErrExceedsPayment      = NewDomainError("EXCEEDS_PAYMENT", "Allocated amounts exceed the payment amount")
	ErrRunInProgress       = NewDomainError("RUN_IN_PROGRESS", "A reconciliation run is already in progress for this tenant")
)
