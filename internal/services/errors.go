package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid           ErrorCode = "invalid"
	ErrorNotFound          ErrorCode = "not_found"
	ErrorConflict          ErrorCode = "conflict"
	ErrorInvalidState      ErrorCode = "invalid_state"
	ErrorIncompleteAnswers ErrorCode = "incomplete_answers"
	ErrorUnknownQuestion   ErrorCode = "unknown_question"
	ErrorUnauthorized      ErrorCode = "unauthorized"
	ErrorForbidden         ErrorCode = "forbidden"
	ErrorBadGateway        ErrorCode = "bad_gateway"
	ErrorTimeout           ErrorCode = "timeout"
	ErrorTooManyRequests   ErrorCode = "too_many_requests"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	// Missing lists unanswered mandatory question ids for ErrorIncompleteAnswers.
	Missing []string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error      { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error     { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error     { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewInvalidStateError(msg string) error { return &ServiceError{Code: ErrorInvalidState, Message: msg} }
func NewForbiddenError(msg string) error    { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewIncompleteAnswersError(missing []string) error {
	return &ServiceError{Code: ErrorIncompleteAnswers, Message: "mandatory questions unanswered", Missing: missing}
}

func NewUnknownQuestionError(msg string) error {
	return &ServiceError{Code: ErrorUnknownQuestion, Message: msg}
}

func NewBadGatewayError(msg string) error { return &ServiceError{Code: ErrorBadGateway, Message: msg} }
func NewTimeoutError(msg string) error    { return &ServiceError{Code: ErrorTimeout, Message: msg} }

func NewTooManyRequestsError(msg string) error {
	return &ServiceError{Code: ErrorTooManyRequests, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

var (
	// ErrCheckInExists is returned by CreateCheckIn when another in-progress
	// check-in already occupies the (user, category) slot.
	ErrCheckInExists = errors.New("check-in already in progress")
	// ErrVersionConflict is returned by CAS writes conditioned on a stale version.
	ErrVersionConflict = errors.New("check-in version conflict")
)
