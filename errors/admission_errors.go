package errors

import (
	stderrors "errors"

	"github.com/mezonai/syncgate/jsonx"
)

// ErrorKind identifies why a submitted transaction was rejected.
type ErrorKind string

const (
	// Structural errors
	KindOnlyOneAllowed      ErrorKind = "only_one_allowed"
	KindMissingFields       ErrorKind = "missing_fields"
	KindInvalidAddress      ErrorKind = "invalid_address"
	KindInvalidTicker       ErrorKind = "invalid_ticker"
	KindInvalidAmountType   ErrorKind = "invalid_amount_type"
	KindInvalidAmountFormat ErrorKind = "invalid_amount_format"
	KindAmountOutOfRange    ErrorKind = "amount_out_of_range"
	KindInvalidNonceType    ErrorKind = "invalid_nonce_type"
	KindNonceOutOfRange     ErrorKind = "nonce_out_of_range"
	KindInvalidData         ErrorKind = "invalid_data"
	KindInvalidSignFormat   ErrorKind = "invalid_sign_format"
	KindInvalidRequest      ErrorKind = "invalid_request"

	// Cryptographic and contract errors
	KindSignatureInvalid ErrorKind = "signature_invalid"
	KindContractInvalid  ErrorKind = "contract_invalid"

	// Business conflicts
	KindDuplicateTransaction ErrorKind = "duplicate_transaction"
	KindPoolFull             ErrorKind = "pool_full"

	KindInternal ErrorKind = "internal_error"
)

// Error message constants returned to submitters
const (
	ErrMsgOnlyOneAllowed       = "Only one TX allowed"
	ErrMsgMissingFields        = "Missed fields"
	ErrMsgInvalidAddress       = "Wrong address format"
	ErrMsgInvalidTicker        = "Wrong ticker format"
	ErrMsgInvalidAmountType    = "Amount should be a string or a number"
	ErrMsgInvalidAmountFormat  = "Amount is not a valid integer"
	ErrMsgAmountOutOfRange     = "Amount is out of range"
	ErrMsgInvalidNonceType     = "Nonce should be an integer"
	ErrMsgNonceOutOfRange      = "Nonce is out of range"
	ErrMsgInvalidData          = "Incorrect data format"
	ErrMsgInvalidSignFormat    = "Incorrect sign format"
	ErrMsgInvalidRequest       = "Request format is invalid"
	ErrMsgSignatureInvalid     = "Signature verification failed"
	ErrMsgContractInvalid      = "Contract validation failed"
	ErrMsgDuplicateTransaction = "TX is already in txpool"
	ErrMsgPoolFull             = "Txpool is full, please try again later"
	ErrMsgInternal             = "Server error, please try again"
)

// AdmissionError is a rejection verdict. It is a value, never a fault: the
// caller gets it back as {err:1, message}.
type AdmissionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *AdmissionError) Error() string {
	b, _ := jsonx.Marshal(AdmissionError{
		Kind:    e.Kind,
		Message: e.Message,
	})
	return string(b)
}

// Retryable reports whether resubmitting the same payload could succeed.
// Duplicates never become admissible; a full pool may drain.
func (e *AdmissionError) Retryable() bool {
	return e.Kind == KindPoolFull || e.Kind == KindInternal
}

// NewAdmissionError creates a new AdmissionError
func NewAdmissionError(kind ErrorKind, message string) *AdmissionError {
	return &AdmissionError{
		Kind:    kind,
		Message: message,
	}
}

// KindOf returns the kind of err if it is an AdmissionError, or KindInternal.
func KindOf(err error) ErrorKind {
	var ae *AdmissionError
	if stderrors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

var (
	ErrUnknownMessageType = stderrors.New("unknown message type")
	ErrDuplicateHandler   = stderrors.New("handler already registered")
	ErrNotFound           = stderrors.New("not found")
	ErrInvalidChunkSize   = stderrors.New("invalid chunk size")
	ErrBroadcastDisabled  = stderrors.New("broadcast not enabled")
)

// Is and As forward to the standard library so callers need one errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}
