package signalapi

import (
	"errors"
	"fmt"
)

const (
	CodeValidation = "VALIDATION"
	CodeHTTPStatus = "HTTP_STATUS"
	CodeDecode     = "DECODE"
	CodeTransport  = "TRANSPORT"
)

// CodedError is a typed error used for stable mapping into view state and API responses.
type CodedError struct {
	Code    string
	Message string
	Status  int
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// ErrorCode returns the code of the first CodedError in err's chain, or "" when there is none.
func ErrorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
