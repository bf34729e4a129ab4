package status

// Outcome codes carried by Status.Code. OK is the only success value.
const (
	OK             = 0
	StorageFailure = 1
	InvalidInput   = 2
)

// MsgStorageFailure is the only message a caller ever sees for a backing-store error.
const MsgStorageFailure = "Something went wrong. We are working on it."

// Status is the result of every data-access call. Rows is nil when the call
// failed and a non-nil (possibly empty) slice when it succeeded. Affected is
// the rows-affected count of mutating statements.
type Status[T any] struct {
	Code     int    `json:"status"`
	Message  string `json:"message"`
	Rows     []T    `json:"rows"`
	Affected int64  `json:"affected,omitempty"`
}

// Success builds a successful Status. A nil rows slice is normalized to empty.
func Success[T any](msg string, rows []T) Status[T] {
	if rows == nil {
		rows = []T{}
	}
	return Status[T]{Code: OK, Message: msg, Rows: rows}
}

// Mutated builds a successful Status for a statement that returns no rows.
func Mutated[T any](msg string, affected int64) Status[T] {
	return Status[T]{Code: OK, Message: msg, Rows: []T{}, Affected: affected}
}

// Failed builds a failed Status. code must be non-zero.
func Failed[T any](code int, msg string) Status[T] {
	if code == OK {
		code = StorageFailure
	}
	return Status[T]{Code: code, Message: msg}
}

// Storage is the Status returned for any backing-store error.
func Storage[T any]() Status[T] {
	return Failed[T](StorageFailure, MsgStorageFailure)
}

func (s Status[T]) Succeeded() bool { return s.Code == OK }

// Empty reports a successful call that matched nothing.
func (s Status[T]) Empty() bool { return s.Code == OK && len(s.Rows) == 0 && s.Affected == 0 }

// First returns the first row, if the call succeeded and produced one.
func (s Status[T]) First() (T, bool) {
	var zero T
	if s.Code != OK || len(s.Rows) == 0 {
		return zero, false
	}
	return s.Rows[0], true
}
