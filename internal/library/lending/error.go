package lending

import (
	"errors"
	"fmt"
)

// ===== Error model (books/auth と同型、貸出固有コードを追加) =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeMemberNotFound  Code = "MEMBER_NOT_FOUND"
	CodeCopyNotFound    Code = "COPY_NOT_FOUND"
	CodePolicyViolation Code = "POLICY_VIOLATION"
	CodeNotAvailable    Code = "NOT_AVAILABLE"
	CodeNoActiveLoan    Code = "NO_ACTIVE_LOAN"
	CodeIntegrity       Code = "INTEGRITY"
	CodeTxnFailed       Code = "TXN_FAILED"
	CodeUpdateFailed    Code = "UPDATE_FAILED"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrMemberNotFound() *APIError {
	return &APIError{Code: CodeMemberNotFound, Message: "Member not found"}
}
func ErrCopyNotFound() *APIError {
	return &APIError{Code: CodeCopyNotFound, Message: "Book copy not found"}
}
func ErrPolicyViolation(reason string) *APIError {
	return &APIError{Code: CodePolicyViolation, Message: reason}
}
func ErrNotAvailable(msg string) *APIError { return &APIError{Code: CodeNotAvailable, Message: msg} }
func ErrNoActiveLoan() *APIError {
	return &APIError{Code: CodeNoActiveLoan, Message: "No active transaction found for this book copy. Book may not be issued."}
}
func ErrIntegrity(msg string) *APIError { return &APIError{Code: CodeIntegrity, Message: msg} }
func ErrTxnFailed(msg string) *APIError { return &APIError{Code: CodeTxnFailed, Message: msg} }
func ErrUpdateFailed(msg string) *APIError {
	return &APIError{Code: CodeUpdateFailed, Message: msg}
}
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument, CodePolicyViolation, CodeNotAvailable:
			return 400
		case CodeMemberNotFound, CodeCopyNotFound, CodeNoActiveLoan:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}
