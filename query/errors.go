package query

import (
	"errors"
	"fmt"

	"github.com/l-vitaly/go-hashgraph/proto"
)

// ErrorKind classifies why a query failed.
type ErrorKind int

const (
	// KindValidation is a local precondition failure, reported before any I/O.
	KindValidation ErrorKind = iota + 1
	// KindNetwork is a transport failure after the network client gave up.
	KindNetwork
	// KindStatus is a non-success precheck status returned by the node.
	KindStatus
	// KindCancelled means the caller's context ended before the query finished.
	KindCancelled
	// KindMaxPaymentExceeded means the estimated cost is above the allowed payment.
	KindMaxPaymentExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindCancelled:
		return "cancelled"
	case KindMaxPaymentExceeded:
		return "max payment exceeded"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is returned by every query operation. Kind selects which of the
// payload fields are meaningful.
type Error struct {
	Kind  ErrorKind
	Query proto.Kind
	// Status is set for KindStatus.
	Status proto.Status
	// Reason is set for KindValidation and KindMaxPaymentExceeded.
	Reason string
	// Cost and MaxPayment are set for KindMaxPaymentExceeded.
	Cost       uint64
	MaxPayment uint64
	Cause      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindValidation:
		return fmt.Sprintf("%s: %s", e.Query, e.Reason)
	case KindStatus:
		return fmt.Sprintf("%s: received status %s", e.Query, e.Status)
	case KindMaxPaymentExceeded:
		return fmt.Sprintf("%s: cost %d exceeds max query payment %d", e.Query, e.Cost, e.MaxPayment)
	}
	return fmt.Sprintf("%s: %s: %v", e.Query, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ResponseMismatchError is the panic value raised when a node answers with a
// response body that does not belong to the query that was sent. It marks a
// broken contract between client and network, not a recoverable failure.
type ResponseMismatchError struct {
	Want proto.Kind
	Got  proto.Kind
}

func (e *ResponseMismatchError) Error() string {
	return fmt.Sprintf("response case not %s: %s", e.Want, e.Got)
}

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsValidation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindValidation
}

func IsNetwork(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNetwork
}

func IsStatus(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindStatus
}

func IsCancelled(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindCancelled
}

func IsMaxPaymentExceeded(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindMaxPaymentExceeded
}

// StatusOf returns the node status carried by a status error.
func StatusOf(err error) (proto.Status, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindStatus {
		return e.Status, true
	}
	return 0, false
}
