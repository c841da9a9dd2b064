// internal/core/domain/errors.go
package domain

import "errors"

// Error kinds surfaced by the sale/inventory core. Operations wrap these with
// context; callers compare with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyVoided     = errors.New("sale already voided")
	ErrTooOld            = errors.New("sale too old to void")
	ErrUnauthorized      = errors.New("unauthorized")
	// ErrConflict is transient: lock timeout, deadlock or serialization
	// failure. The caller may retry the whole operation.
	ErrConflict = errors.New("conflict")
)

// ErrorKind is a stable, transport-friendly name for an error kind.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidArgument   ErrorKind = "invalid_argument"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindAlreadyVoided     ErrorKind = "already_voided"
	KindTooOld            ErrorKind = "too_old"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindConflict          ErrorKind = "conflict"
	KindInternal          ErrorKind = "internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNotFound, KindNotFound},
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrAlreadyVoided, KindAlreadyVoided},
	{ErrTooOld, KindTooOld},
	{ErrUnauthorized, KindUnauthorized},
	{ErrConflict, KindConflict},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
