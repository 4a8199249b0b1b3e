// Package apperr defines the error taxonomy shared by every layer: authentication
// failures, validation failures and storage failures. Each type knows its gRPC status
// so the gate can surface it without a translation table.
package apperr

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type AuthCode string

const (
	Missing            AuthCode = "missing_token"
	Malformed          AuthCode = "malformed_token"
	Expired            AuthCode = "expired_token"
	InvalidCredentials AuthCode = "invalid_credentials"
)

var authMessages = map[AuthCode]string{
	Missing:            "token not provided",
	Malformed:          "invalid token, log in again",
	Expired:            "token expired, log in again",
	InvalidCredentials: "invalid credentials",
}

type AuthError struct {
	Code AuthCode
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError carrying the same code, so wrapped causes still compare
// equal to the sentinels below.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

func (e *AuthError) GRPCStatus() *status.Status {
	return status.New(codes.Unauthenticated, string(e.Code)+": "+authMessages[e.Code])
}

var (
	ErrMissingToken       = &AuthError{Code: Missing}
	ErrMalformedToken     = &AuthError{Code: Malformed}
	ErrExpiredToken       = &AuthError{Code: Expired}
	ErrInvalidCredentials = &AuthError{Code: InvalidCredentials}
)

// Auth wraps cause under the given code.
func Auth(code AuthCode, cause error) error {
	return &AuthError{Code: code, Err: cause}
}

type ValidationCode string

const (
	InactiveReference ValidationCode = "inactive_reference"
	NotFound          ValidationCode = "not_found"
	MalformedInput    ValidationCode = "malformed_input"
)

type ValidationError struct {
	Code  ValidationCode
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	s := string(e.Code)
	if e.Field != "" {
		s += " (" + e.Field + ")"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

func (e *ValidationError) GRPCStatus() *status.Status {
	c := codes.InvalidArgument
	switch e.Code {
	case InactiveReference:
		c = codes.FailedPrecondition
	case NotFound:
		c = codes.NotFound
	}
	return status.New(c, e.Error())
}

var (
	ErrInactiveReference = &ValidationError{Code: InactiveReference}
	ErrNotFound          = &ValidationError{Code: NotFound}
	ErrMalformedInput    = &ValidationError{Code: MalformedInput}
)

func Invalid(code ValidationCode, field, msg string) error {
	return &ValidationError{Code: code, Field: field, Msg: msg}
}

type StorageCode string

const (
	Unavailable         StorageCode = "storage_unavailable"
	ConstraintViolation StorageCode = "constraint_violation"
)

type StorageError struct {
	Code StorageCode
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	s := string(e.Code)
	if e.Op != "" {
		s += " in " + e.Op
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	return ok && t.Code == e.Code
}

// GRPCStatus hides the driver error from clients; it is logged where it happens.
func (e *StorageError) GRPCStatus() *status.Status {
	if e.Code == ConstraintViolation {
		return status.New(codes.AlreadyExists, string(e.Code)+": conflicts with an existing record")
	}
	return status.New(codes.Internal, string(e.Code)+": internal error")
}

var (
	ErrUnavailable         = &StorageError{Code: Unavailable}
	ErrConstraintViolation = &StorageError{Code: ConstraintViolation}
)

func Storage(code StorageCode, op string, cause error) error {
	return &StorageError{Code: code, Op: op, Err: cause}
}

// Class is the outcome a client acts on: re-authenticate, correct input, or report a fault.
type Class string

const (
	ClassUnauthenticated Class = "not_authenticated"
	ClassInvalidRequest  Class = "invalid_request"
	ClassSystem          Class = "system_error"
)

func Classify(err error) Class {
	var ae *AuthError
	var ve *ValidationError
	switch {
	case errors.As(err, &ae):
		return ClassUnauthenticated
	case errors.As(err, &ve):
		return ClassInvalidRequest
	default:
		return ClassSystem
	}
}

// CodeOf returns the machine-readable code of err, or "internal" for errors
// outside the taxonomy.
func CodeOf(err error) string {
	var ae *AuthError
	var ve *ValidationError
	var se *StorageError
	switch {
	case errors.As(err, &ae):
		return string(ae.Code)
	case errors.As(err, &ve):
		return string(ve.Code)
	case errors.As(err, &se):
		return string(se.Code)
	default:
		return "internal"
	}
}

// MaxID is the largest identifier a JSON number carries without rounding.
const MaxID = 1<<53 - 1

// ParseID turns a client-supplied identifier into an integer in [0, MaxID].
func ParseID(field, raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 || n > MaxID {
		return 0, Invalid(MalformedInput, field, "must be a non-negative integer")
	}
	return n, nil
}

// GRPCError converts err into a status error that carries only the client-facing
// message. Causes stay out of the response.
func GRPCError(err error) error {
	if err == nil {
		return nil
	}
	var ae *AuthError
	var ve *ValidationError
	var se *StorageError
	switch {
	case errors.As(err, &ae):
		return ae.GRPCStatus().Err()
	case errors.As(err, &ve):
		return ve.GRPCStatus().Err()
	case errors.As(err, &se):
		return se.GRPCStatus().Err()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, "internal error")
}

// Problem is the JSON body of a failed HTTP request.
type Problem struct {
	Class   Class  `json:"class"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPProblem returns the status code and body for err.
func HTTPProblem(err error) (int, Problem) {
	p := Problem{Class: Classify(err), Code: CodeOf(err)}
	var ae *AuthError
	var ve *ValidationError
	var se *StorageError
	switch {
	case errors.As(err, &ae):
		p.Message = authMessages[ae.Code]
		return http.StatusUnauthorized, p
	case errors.As(err, &ve):
		p.Message = ve.Error()
		switch ve.Code {
		case InactiveReference:
			return http.StatusConflict, p
		case NotFound:
			return http.StatusNotFound, p
		}
		return http.StatusBadRequest, p
	case errors.As(err, &se) && se.Code == ConstraintViolation:
		p.Message = "conflicts with an existing record"
		return http.StatusConflict, p
	}
	p.Message = "internal error"
	return http.StatusInternalServerError, p
}
