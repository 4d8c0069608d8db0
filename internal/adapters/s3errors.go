package adapters

import (
	"context"
	"errors"
	"fmt"
	"net"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// ErrorKind classifies an object-storage error per §7's closed taxonomy:
// transient vs permanent is encoded in the type, never sniffed from a
// message string.
type ErrorKind int

const (
	ErrKindUnknown ErrorKind = iota
	ErrKindPermanent
	ErrKindTransient
	ErrKindExpiredCredential
	ErrKindInterrupted
	ErrKindInvalidKey
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindPermanent:
		return "permanent"
	case ErrKindTransient:
		return "transient"
	case ErrKindExpiredCredential:
		return "expired-credential"
	case ErrKindInterrupted:
		return "interrupted"
	case ErrKindInvalidKey:
		return "invalid-key"
	default:
		return "unknown"
	}
}

// ExpiredTokenErrorCode is the service-side error code that triggers
// credential renewal (§4.5, §6).
const ExpiredTokenErrorCode = "ExpiredToken"

// ErrStrongCryptoPolicyMissing is returned by the encryption layer (out of
// scope per §1) when the wrapped key material cannot be unwrapped because
// the runtime lacks a strong-encryption policy. The core never constructs
// this itself; it only classifies it when the adapter's Open callback
// surfaces it.
var ErrStrongCryptoPolicyMissing = errors.New("invalid key: strong encryption policy not installed")

// ClassifiedError is the adapter's uniform error envelope: it carries the
// service error type/code/request IDs §7 requires reporting for a
// permanent failure, alongside the kind used to decide retry policy.
type ClassifiedError struct {
	Kind               ErrorKind
	Code               string
	Message            string
	RequestID          string
	ExtendedRequestID  string
	Err                error
}

func (e *ClassifiedError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error %s (request id %s, extended request id %s): %s",
		e.Kind, e.Code, e.RequestID, e.ExtendedRequestID, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// classifyError maps a raw error from the AWS SDK (or local I/O) onto the
// closed taxonomy in §7.
func classifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrStrongCryptoPolicyMissing) {
		return &ClassifiedError{Kind: ErrKindInvalidKey, Err: err, Message: err.Error()}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Kind: ErrKindInterrupted, Err: err, Message: err.Error()}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == ExpiredTokenErrorCode {
			return &ClassifiedError{Kind: ErrKindExpiredCredential, Code: code, Message: apiErr.ErrorMessage(), Err: err}
		}

		var reqID, extReqID string
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			reqID = respErr.RequestID
		}
		var kind ErrorKind = ErrKindPermanent
		var fault interface{ ErrorFault() smithy.ErrorFault }
		if errors.As(err, &fault) && fault.ErrorFault() == smithy.FaultServer {
			kind = ErrKindTransient
		}

		return &ClassifiedError{
			Kind:              kind,
			Code:              code,
			Message:           apiErr.ErrorMessage(),
			RequestID:         reqID,
			ExtendedRequestID: extReqID,
			Err:               err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &ClassifiedError{Kind: ErrKindInterrupted, Err: err, Message: err.Error()}
		}
		return &ClassifiedError{Kind: ErrKindTransient, Err: err, Message: err.Error()}
	}

	// Unrecognized error shape: treat as transient so the retry budget
	// gets a chance, matching §7's "generic service error" bucket.
	return &ClassifiedError{Kind: ErrKindTransient, Err: err, Message: err.Error()}
}
