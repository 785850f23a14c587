package utils

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind string

const (
	ErrorKindValidation      ErrorKind = "validation"
	ErrorKindUnauthenticated ErrorKind = "unauthenticated"
	ErrorKindPermission      ErrorKind = "permission_denied"
	ErrorKindNotFound        ErrorKind = "not_found"
	ErrorKindConflict        ErrorKind = "conflict"
	ErrorKindInternal        ErrorKind = "internal"
)

// AppError carries the failure class used to pick the response status and
// whether the operation may be retried.
type AppError struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Err       error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewValidationError(message string) *AppError {
	return &AppError{Kind: ErrorKindValidation, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: ErrorKindNotFound, Message: message}
}

func NewPermissionError(message string) *AppError {
	return &AppError{Kind: ErrorKindPermission, Message: message}
}

func NewUnauthenticatedError(message string) *AppError {
	return &AppError{Kind: ErrorKindUnauthenticated, Message: message}
}

func NewConflictError(message string, retryable bool) *AppError {
	return &AppError{Kind: ErrorKindConflict, Message: message, Retryable: retryable}
}

// WrapError attaches a kind to an existing error, keeping it reachable via errors.Is.
func WrapError(kind ErrorKind, err error, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf resolves the failure class of any error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrorRecordNotFound) {
		return ErrorKindNotFound
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return ErrorKindValidation
	}
	if isRetryableDBError(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrorKindConflict
	}
	return ErrorKindInternal
}

// IsRetryable reports conflicts that may succeed when attempted again.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return isRetryableDBError(err)
}

// ClassifyDBError maps driver failures onto the error taxonomy:
// duplicate key, deadlock and lock wait timeout become retryable conflicts.
func ClassifyDBError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return WrapError(ErrorKindNotFound, err, "record not found")
	}
	if IsDuplicateKeyError(err) {
		return &AppError{Kind: ErrorKindConflict, Message: "concurrent update conflict, please retry", Retryable: true, Err: err}
	}
	if isRetryableDBError(err) {
		return &AppError{Kind: ErrorKindConflict, Message: "database busy, please retry", Retryable: true, Err: err}
	}
	return err
}

func IsDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// isRetryableDBError matches lock waits, deadlocks and serialization
// failures on mysql (1205, 1213) and postgres (55P03, 40P01, 40001).
func isRetryableDBError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}
	var mysqlErr *mysqlDriver.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	switch mysqlErr.Number {
	case 1062, 1205, 1213:
		return true
	}
	return false
}
