package errs

import "fmt"

// StorageError signals that the backing store is unusable. It is fatal at
// every layer it passes through: fault barriers must re-raise it rather
// than swallow it (spec §4.4, §7).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps a low-level store error as a fatal StorageError.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// UnknownServiceError is returned when a raw transaction, or a broadcast
// request, names a service_id with no registered handler. Recoverable.
type UnknownServiceError struct {
	ServiceID uint16
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("unknown service_id %d", e.ServiceID)
}

// UnparseableTransactionError is returned when a service rejects a raw
// payload. Recoverable at propose time; a BUG (fatal) if it surfaces during
// block execution, since propose-time validation should have excluded it.
type UnparseableTransactionError struct {
	ServiceID uint16
	Err       error
}

func (e *UnparseableTransactionError) Error() string {
	return fmt.Sprintf("service %d rejected payload: %v", e.ServiceID, e.Err)
}

func (e *UnparseableTransactionError) Unwrap() error { return e.Err }

// MissingTransactionError is returned when a tx hash resolves to no
// envelope in the persistent transaction table or the tx-cache. Always a
// BUG (fatal) at execution time: propose-time validation should have
// excluded such hashes.
type MissingTransactionError struct {
	TxHash [32]byte
}

func (e *MissingTransactionError) Error() string {
	return fmt.Sprintf("missing transaction %x", e.TxHash[:])
}

// TransactionFailure is a structured error a service's Execute returns for
// a normal (non-fault) failure. Recorded in transaction_results, logged at
// info, causes a per-tx rollback to the prior savepoint. Does not fail the
// block.
type TransactionFailure struct {
	Code        uint16
	Description string
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("transaction failed: code=%d %s", e.Code, e.Description)
}

// TransactionPanic records an unexpected (non-storage) fault raised by a
// service's Execute. Recorded in transaction_results as a panic-kind
// result, logged at error, causes a per-tx rollback. Does not fail the
// block.
type TransactionPanic struct {
	Description string
}

func (e *TransactionPanic) Error() string {
	return fmt.Sprintf("transaction panicked: %s", e.Description)
}

// ServiceHookFailure records an unexpected (non-storage) fault raised by a
// service's BeforeCommit hook. Logged at error, causes a per-service
// rollback. Does not fail the block.
type ServiceHookFailure struct {
	ServiceID uint16
	Err       error
}

func (e *ServiceHookFailure) Error() string {
	return fmt.Sprintf("service %d before_commit failed: %v", e.ServiceID, e.Err)
}

func (e *ServiceHookFailure) Unwrap() error { return e.Err }

// DuplicateServiceIDError is a fatal configuration error raised when two
// registered services share a service_id.
type DuplicateServiceIDError struct {
	ServiceID uint16
}

func (e *DuplicateServiceIDError) Error() string {
	return fmt.Sprintf("duplicate service_id %d", e.ServiceID)
}

// DuplicateServiceNameError is a fatal genesis error raised when two
// registered services share a service name.
type DuplicateServiceNameError struct {
	Name string
}

func (e *DuplicateServiceNameError) Error() string {
	return fmt.Sprintf("duplicate service name %q", e.Name)
}
