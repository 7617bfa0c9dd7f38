package shiftheroes

import (
	"errors"
	"fmt"
)

// AuthError means the bearer token was refused. It is fatal for the account
// that owns the token and is never retried.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("shiftheroes: authentication rejected (status=%d)", e.Status)
}

// TransportError wraps network or HTTP-level failures. Callers retry these
// with a bounded budget.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("shiftheroes: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DataError means the service answered but the payload was not what the
// endpoint is supposed to return (an error body instead of a list, broken
// JSON). Treated as "nothing usable this cycle", never as fatal.
type DataError struct {
	Op     string
	Detail string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("shiftheroes: %s: malformed response: %s", e.Op, e.Detail)
}

func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsData(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}
