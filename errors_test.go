package qdb

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("every code has a category", prop.ForAll(
		func(code uint32) bool {
			return Category(ErrorCode(code)) != nil
		},
		gen.UInt32(),
	))

	properties.Property("a known failure matches its category and origin", prop.ForAll(
		func(i int) bool {
			code := KnownErrorCodes[i]
			err := &Error{Code: code}
			if !errors.Is(err, Category(code)) {
				return false
			}
			if origin, ok := originCategories[code.Origin()]; ok && !errors.Is(err, origin) {
				return false
			}
			return code.Failure()
		},
		gen.IntRange(0, len(KnownErrorCodes)-1),
	))

	properties.Property("codes without an origin fall back to the generic category", prop.ForAll(
		func(low uint32) bool {
			return Category(ErrorCode(low&0x0FFFFFFF)) == ErrGeneric
		},
		gen.UInt32(),
	))

	properties.TestingRun(t)
}

func TestErrorCodeParts(t *testing.T) {
	assert.True(t, QDB_E_OK.Success())
	assert.True(t, QDB_E_OK_CREATED.Success())
	assert.True(t, QDB_E_ALIAS_NOT_FOUND.Failure())
	assert.Equal(t, QDB_E_ORIGIN_OPERATION, QDB_E_ALIAS_NOT_FOUND.Origin())
	assert.Equal(t, QDB_E_SEVERITY_WARNING, QDB_E_ALIAS_NOT_FOUND.Severity())
	assert.Equal(t, QDB_E_ORIGIN_CONNECTION, QDB_E_TIMEOUT.Origin())
	assert.Equal(t, QDB_E_SEVERITY_UNRECOVERABLE, QDB_E_CONNECTION_REFUSED.Severity())
}

func TestErrorUnwrap(t *testing.T) {
	err := error(&Error{Code: QDB_E_ALIAS_NOT_FOUND, Message: "missing"})

	assert.ErrorIs(t, err, ErrAliasNotFound)
	assert.ErrorIs(t, err, ErrOperation)
	assert.NotErrorIs(t, err, ErrInput)
	assert.NotErrorIs(t, err, ErrAliasAlreadyExists)
	assert.Equal(t, "qdb: missing (0xb1000008)", err.Error())

	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, ErrAliasNotFound, qe.Category())

	timeout := &Error{Code: QDB_E_TIMEOUT}
	assert.ErrorIs(t, timeout, ErrConnection)
	assert.Equal(t, []error{ErrConnection}, timeout.Unwrap())
	assert.Equal(t, "qdb: error 0xd200000a", timeout.Error())
}

func TestLocalErrorsCarryCategories(t *testing.T) {
	for _, err := range []error{ErrHandleClosed, ErrEmptyAlias, ErrLengthMismatch, ErrZeroCapacity} {
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, err, ErrInput)
	}
	for _, err := range []error{ErrBatchReleased, ErrTableReleased, ErrBufferReleased} {
		assert.ErrorIs(t, err, ErrInput)
		assert.NotErrorIs(t, err, ErrInvalidArgument)
	}
	assert.NotErrorIs(t, ErrCriticalSection, ErrGeneric)
}

func TestCheckAllowed(t *testing.T) {
	h, _ := openFake(t)

	code, err := check(h.raw, QDB_E_OK_CREATED)
	require.NoError(t, err)
	assert.Equal(t, QDB_E_OK_CREATED, code)

	code, err = checkAllowed(h.raw, QDB_E_ITERATOR_END, QDB_E_ITERATOR_END)
	require.NoError(t, err)
	assert.Equal(t, QDB_E_ITERATOR_END, code)

	// the handle has no matching last error, so the static text is used
	_, err = check(h.raw, QDB_E_TIMEOUT)
	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, QDB_E_TIMEOUT, qe.Code)
	assert.Equal(t, "fake error qdb: connection error", qe.Message)
}

func TestCheckUsesLastErrorMessage(t *testing.T) {
	h, _ := openFake(t)

	_, err := h.BlobGet("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAliasNotFound)

	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, QDB_E_ALIAS_NOT_FOUND, qe.Code)
	assert.Equal(t, "alias not found: missing", qe.Message)
}

func TestCheckWithoutHandle(t *testing.T) {
	requireFake(t)

	_, err := check(nil, QDB_E_INVALID_ARGUMENT)
	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "fake error qdb: invalid argument", qe.Message)
}
