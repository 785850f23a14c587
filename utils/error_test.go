package utils

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassifyDBError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		kind      ErrorKind
		retryable bool
	}{
		{"duplicate", &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}, ErrorKindConflict, true},
		{"deadlock", fmt.Errorf("exec: %w", &mysqlDriver.MySQLError{Number: 1213}), ErrorKindConflict, true},
		{"lock wait", &mysqlDriver.MySQLError{Number: 1205}, ErrorKindConflict, true},
		{"pg deadlock", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), ErrorKindConflict, true},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, ErrorKindConflict, true},
		{"pg unique", &pgconn.PgError{Code: "23505"}, ErrorKindConflict, true},
		{"translated duplicate", gorm.ErrDuplicatedKey, ErrorKindConflict, true},
		{"not found", gorm.ErrRecordNotFound, ErrorKindNotFound, false},
		{"other", errors.New("boom"), ErrorKindInternal, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyDBError(tc.err)
			assert.Equal(t, tc.kind, KindOf(got))
			assert.Equal(t, tc.retryable, IsRetryable(got))
		})
	}
}

func TestAppErrorKeepsCause(t *testing.T) {
	cause := errors.New("insufficient stock")
	err := WrapError(ErrorKindValidation, cause, "insufficient stock for product %q", "Mouse")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, `insufficient stock for product "Mouse"`, err.Error())
	assert.Equal(t, ErrorKindValidation, KindOf(fmt.Errorf("checkout: %w", err)))
}

func TestClassifyDBErrorKeepsAppError(t *testing.T) {
	orig := NewConflictError("cart already converted", false)
	assert.Same(t, orig, ClassifyDBError(orig))
	assert.False(t, IsRetryable(orig))
	assert.Nil(t, ClassifyDBError(nil))
}
