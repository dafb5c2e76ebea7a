package qdb

import (
	"errors"
	"fmt"
	"slices"
)

// ErrorCode is a native qdb_error_t. The top nibble is the origin, the next
// one the severity, the low 16 bits the code proper.
type ErrorCode uint32

const (
	errorOriginMask   ErrorCode = 0xF0000000
	errorSeverityMask ErrorCode = 0x0F000000
)

const (
	QDB_E_ORIGIN_SYSTEM_REMOTE ErrorCode = 0xF0000000
	QDB_E_ORIGIN_SYSTEM_LOCAL  ErrorCode = 0xE0000000
	QDB_E_ORIGIN_CONNECTION    ErrorCode = 0xD0000000
	QDB_E_ORIGIN_INPUT         ErrorCode = 0xC0000000
	QDB_E_ORIGIN_OPERATION     ErrorCode = 0xB0000000
	QDB_E_ORIGIN_PROTOCOL      ErrorCode = 0xA0000000
)

const (
	QDB_E_SEVERITY_UNRECOVERABLE ErrorCode = 0x03000000
	QDB_E_SEVERITY_ERROR         ErrorCode = 0x02000000
	QDB_E_SEVERITY_WARNING       ErrorCode = 0x01000000
	QDB_E_SEVERITY_INFO          ErrorCode = 0x00000000
)

// note, that OK and OK_CREATED are both successes
const (
	QDB_E_OK                          ErrorCode = 0
	QDB_E_UNINITIALIZED               ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_UNRECOVERABLE | 0xFFFF
	QDB_E_ALIAS_NOT_FOUND             ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_WARNING | 0x0008
	QDB_E_ALIAS_ALREADY_EXISTS        ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_WARNING | 0x0009
	QDB_E_OUT_OF_BOUNDS               ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_WARNING | 0x0019
	QDB_E_SKIPPED                     ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_WARNING | 0x0021
	QDB_E_INCOMPATIBLE_TYPE           ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_WARNING | 0x0022
	QDB_E_CONTAINER_EMPTY             ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_WARNING | 0x0023
	QDB_E_CONTAINER_FULL              ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_WARNING | 0x0024
	QDB_E_ELEMENT_NOT_FOUND           ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_INFO | 0x0025
	QDB_E_ELEMENT_ALREADY_EXISTS      ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_INFO | 0x0026
	QDB_E_OVERFLOW                    ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_WARNING | 0x0027
	QDB_E_UNDERFLOW                   ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_WARNING | 0x0028
	QDB_E_TAG_ALREADY_SET             ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_INFO | 0x0029
	QDB_E_TAG_NOT_SET                 ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_INFO | 0x002A
	QDB_E_TIMEOUT                     ErrorCode = QDB_E_ORIGIN_CONNECTION | QDB_E_SEVERITY_ERROR | 0x000A
	QDB_E_CONNECTION_REFUSED          ErrorCode = QDB_E_ORIGIN_CONNECTION | QDB_E_SEVERITY_UNRECOVERABLE | 0x000E
	QDB_E_CONNECTION_RESET            ErrorCode = QDB_E_ORIGIN_CONNECTION | QDB_E_SEVERITY_ERROR | 0x000F
	QDB_E_UNSTABLE_CLUSTER            ErrorCode = QDB_E_ORIGIN_CONNECTION | QDB_E_SEVERITY_ERROR | 0x0012
	QDB_E_TRY_AGAIN                   ErrorCode = QDB_E_ORIGIN_CONNECTION | QDB_E_SEVERITY_ERROR | 0x0017
	QDB_E_CONFLICT                    ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_ERROR | 0x001A
	QDB_E_NOT_CONNECTED               ErrorCode = QDB_E_ORIGIN_CONNECTION | QDB_E_SEVERITY_ERROR | 0x001B
	QDB_E_RESOURCE_LOCKED             ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_ERROR | 0x002D
	QDB_E_SYSTEM_REMOTE               ErrorCode = QDB_E_ORIGIN_SYSTEM_REMOTE | QDB_E_SEVERITY_UNRECOVERABLE | 0x0001
	QDB_E_SYSTEM_LOCAL                ErrorCode = QDB_E_ORIGIN_SYSTEM_LOCAL | QDB_E_SEVERITY_UNRECOVERABLE | 0x0001
	QDB_E_INTERNAL_REMOTE             ErrorCode = QDB_E_ORIGIN_SYSTEM_REMOTE | QDB_E_SEVERITY_UNRECOVERABLE | 0x0002
	QDB_E_INTERNAL_LOCAL              ErrorCode = QDB_E_ORIGIN_SYSTEM_LOCAL | QDB_E_SEVERITY_UNRECOVERABLE | 0x0002
	QDB_E_NO_MEMORY_REMOTE            ErrorCode = QDB_E_ORIGIN_SYSTEM_REMOTE | QDB_E_SEVERITY_UNRECOVERABLE | 0x0003
	QDB_E_NO_MEMORY_LOCAL             ErrorCode = QDB_E_ORIGIN_SYSTEM_LOCAL | QDB_E_SEVERITY_UNRECOVERABLE | 0x0003
	QDB_E_INVALID_PROTOCOL            ErrorCode = QDB_E_ORIGIN_PROTOCOL | QDB_E_SEVERITY_UNRECOVERABLE | 0x0004
	QDB_E_HOST_NOT_FOUND              ErrorCode = QDB_E_ORIGIN_CONNECTION | QDB_E_SEVERITY_ERROR | 0x0005
	QDB_E_BUFFER_TOO_SMALL            ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_WARNING | 0x000B
	QDB_E_NOT_IMPLEMENTED             ErrorCode = QDB_E_ORIGIN_SYSTEM_REMOTE | QDB_E_SEVERITY_UNRECOVERABLE | 0x0011
	QDB_E_INVALID_VERSION             ErrorCode = QDB_E_ORIGIN_PROTOCOL | QDB_E_SEVERITY_UNRECOVERABLE | 0x0016
	QDB_E_INVALID_ARGUMENT            ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_ERROR | 0x0018
	QDB_E_INVALID_HANDLE              ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_ERROR | 0x001C
	QDB_E_RESERVED_ALIAS              ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_ERROR | 0x001D
	QDB_E_UNMATCHED_CONTENT           ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_INFO | 0x001E
	QDB_E_INVALID_ITERATOR            ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_ERROR | 0x001F
	QDB_E_ENTRY_TOO_LARGE             ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_ERROR | 0x002B
	QDB_E_TRANSACTION_PARTIAL_FAILURE ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_ERROR | 0x002C
	QDB_E_OPERATION_DISABLED          ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_ERROR | 0x002E
	QDB_E_OPERATION_NOT_PERMITTED     ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_ERROR | 0x002F
	QDB_E_ITERATOR_END                ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_INFO | 0x0030
	QDB_E_INVALID_REPLY               ErrorCode = QDB_E_ORIGIN_PROTOCOL | QDB_E_SEVERITY_UNRECOVERABLE | 0x0031
	QDB_E_OK_CREATED                  ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_INFO | 0x0032
	QDB_E_NO_SPACE_LEFT               ErrorCode = QDB_E_ORIGIN_SYSTEM_REMOTE | QDB_E_SEVERITY_UNRECOVERABLE | 0x0033
	QDB_E_QUOTA_EXCEEDED              ErrorCode = QDB_E_ORIGIN_SYSTEM_REMOTE | QDB_E_SEVERITY_ERROR | 0x0034
	QDB_E_ALIAS_TOO_LONG              ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_ERROR | 0x0035
	QDB_E_CLOCK_SKEW                  ErrorCode = QDB_E_ORIGIN_SYSTEM_REMOTE | QDB_E_SEVERITY_ERROR | 0x0036
	QDB_E_ACCESS_DENIED               ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_ERROR | 0x0037
	QDB_E_LOGIN_FAILED                ErrorCode = QDB_E_ORIGIN_SYSTEM_REMOTE | QDB_E_SEVERITY_ERROR | 0x0038
	QDB_E_COLUMN_NOT_FOUND            ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_WARNING | 0x0039
	QDB_E_QUERY_TOO_COMPLEX           ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_ERROR | 0x0040
	QDB_E_INVALID_CRYPTO_KEY          ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_ERROR | 0x0041
	QDB_E_INVALID_QUERY               ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_ERROR | 0x0042
	QDB_E_INVALID_REGEX               ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_ERROR | 0x0043
	QDB_E_UNKNOWN_USER                ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_ERROR | 0x0044
	QDB_E_INTERRUPTED                 ErrorCode = QDB_E_ORIGIN_OPERATION | QDB_E_SEVERITY_ERROR | 0x0045
	QDB_E_NETWORK_INBUF_TOO_SMALL     ErrorCode = QDB_E_ORIGIN_INPUT | QDB_E_SEVERITY_ERROR | 0x0046
	QDB_E_NETWORK_ERROR               ErrorCode = QDB_E_ORIGIN_CONNECTION | QDB_E_SEVERITY_ERROR | 0x0047
	QDB_E_DATA_CORRUPTION             ErrorCode = QDB_E_ORIGIN_SYSTEM_REMOTE | QDB_E_SEVERITY_ERROR | 0x0048
)

// KnownErrorCodes lists every code defined above except the successes.
var KnownErrorCodes = []ErrorCode{
	QDB_E_UNINITIALIZED, QDB_E_ALIAS_NOT_FOUND, QDB_E_ALIAS_ALREADY_EXISTS, QDB_E_OUT_OF_BOUNDS,
	QDB_E_SKIPPED, QDB_E_INCOMPATIBLE_TYPE, QDB_E_CONTAINER_EMPTY, QDB_E_CONTAINER_FULL,
	QDB_E_ELEMENT_NOT_FOUND, QDB_E_ELEMENT_ALREADY_EXISTS, QDB_E_OVERFLOW, QDB_E_UNDERFLOW,
	QDB_E_TAG_ALREADY_SET, QDB_E_TAG_NOT_SET, QDB_E_TIMEOUT, QDB_E_CONNECTION_REFUSED,
	QDB_E_CONNECTION_RESET, QDB_E_UNSTABLE_CLUSTER, QDB_E_TRY_AGAIN, QDB_E_CONFLICT,
	QDB_E_NOT_CONNECTED, QDB_E_RESOURCE_LOCKED, QDB_E_SYSTEM_REMOTE, QDB_E_SYSTEM_LOCAL,
	QDB_E_INTERNAL_REMOTE, QDB_E_INTERNAL_LOCAL, QDB_E_NO_MEMORY_REMOTE, QDB_E_NO_MEMORY_LOCAL,
	QDB_E_INVALID_PROTOCOL, QDB_E_HOST_NOT_FOUND, QDB_E_BUFFER_TOO_SMALL, QDB_E_NOT_IMPLEMENTED,
	QDB_E_INVALID_VERSION, QDB_E_INVALID_ARGUMENT, QDB_E_INVALID_HANDLE, QDB_E_RESERVED_ALIAS,
	QDB_E_UNMATCHED_CONTENT, QDB_E_INVALID_ITERATOR, QDB_E_ENTRY_TOO_LARGE,
	QDB_E_TRANSACTION_PARTIAL_FAILURE, QDB_E_OPERATION_DISABLED, QDB_E_OPERATION_NOT_PERMITTED,
	QDB_E_ITERATOR_END, QDB_E_INVALID_REPLY, QDB_E_NO_SPACE_LEFT, QDB_E_QUOTA_EXCEEDED,
	QDB_E_ALIAS_TOO_LONG, QDB_E_CLOCK_SKEW, QDB_E_ACCESS_DENIED, QDB_E_LOGIN_FAILED,
	QDB_E_COLUMN_NOT_FOUND, QDB_E_QUERY_TOO_COMPLEX, QDB_E_INVALID_CRYPTO_KEY, QDB_E_INVALID_QUERY,
	QDB_E_INVALID_REGEX, QDB_E_UNKNOWN_USER, QDB_E_INTERRUPTED, QDB_E_NETWORK_INBUF_TOO_SMALL,
	QDB_E_NETWORK_ERROR, QDB_E_DATA_CORRUPTION,
}

// Success reports whether the code is a success, including the
// "ok but created" variant.
func (c ErrorCode) Success() bool { return c == QDB_E_OK || c == QDB_E_OK_CREATED }

func (c ErrorCode) Failure() bool { return !c.Success() }

func (c ErrorCode) Origin() ErrorCode { return c & errorOriginMask }

func (c ErrorCode) Severity() ErrorCode { return c & errorSeverityMask }

// define all package level errors here

// Specific categories.
var (
	ErrConnectionRefused   = errors.New("qdb: connection refused")
	ErrHostNotFound        = errors.New("qdb: host not found")
	ErrReservedAlias       = errors.New("qdb: reserved alias")
	ErrInvalidArgument     = errors.New("qdb: invalid argument")
	ErrOutOfBounds         = errors.New("qdb: out of bounds")
	ErrAliasNotFound       = errors.New("qdb: alias not found")
	ErrAliasAlreadyExists  = errors.New("qdb: alias already exists")
	ErrIncompatibleType    = errors.New("qdb: incompatible type")
	ErrOperationDisabled   = errors.New("qdb: operation disabled")
	ErrOverflow            = errors.New("qdb: overflow")
	ErrUnderflow           = errors.New("qdb: underflow")
	ErrResourceLocked      = errors.New("qdb: resource locked")
	ErrInvalidReply        = errors.New("qdb: invalid reply")
	ErrInterrupted         = errors.New("qdb: interrupted")
	ErrInputBufferTooSmall = errors.New("qdb: network input buffer too small")
)

// Origin categories, used when a code has no specific category.
var (
	ErrConnection   = errors.New("qdb: connection error")
	ErrInput        = errors.New("qdb: input error")
	ErrOperation    = errors.New("qdb: operation error")
	ErrSystemLocal  = errors.New("qdb: local system error")
	ErrSystemRemote = errors.New("qdb: remote system error")
	ErrProtocol     = errors.New("qdb: protocol error")
	ErrGeneric      = errors.New("qdb: error")
)

var specificCategories = map[ErrorCode]error{
	QDB_E_CONNECTION_REFUSED:      ErrConnectionRefused,
	QDB_E_HOST_NOT_FOUND:          ErrHostNotFound,
	QDB_E_RESERVED_ALIAS:          ErrReservedAlias,
	QDB_E_INVALID_ARGUMENT:        ErrInvalidArgument,
	QDB_E_OUT_OF_BOUNDS:           ErrOutOfBounds,
	QDB_E_ALIAS_NOT_FOUND:         ErrAliasNotFound,
	QDB_E_ALIAS_ALREADY_EXISTS:    ErrAliasAlreadyExists,
	QDB_E_INCOMPATIBLE_TYPE:       ErrIncompatibleType,
	QDB_E_OPERATION_DISABLED:      ErrOperationDisabled,
	QDB_E_OVERFLOW:                ErrOverflow,
	QDB_E_UNDERFLOW:               ErrUnderflow,
	QDB_E_RESOURCE_LOCKED:         ErrResourceLocked,
	QDB_E_INVALID_REPLY:           ErrInvalidReply,
	QDB_E_INTERRUPTED:             ErrInterrupted,
	QDB_E_NETWORK_INBUF_TOO_SMALL: ErrInputBufferTooSmall,
}

var originCategories = map[ErrorCode]error{
	QDB_E_ORIGIN_CONNECTION:    ErrConnection,
	QDB_E_ORIGIN_INPUT:         ErrInput,
	QDB_E_ORIGIN_OPERATION:     ErrOperation,
	QDB_E_ORIGIN_SYSTEM_LOCAL:  ErrSystemLocal,
	QDB_E_ORIGIN_SYSTEM_REMOTE: ErrSystemRemote,
	QDB_E_ORIGIN_PROTOCOL:      ErrProtocol,
}

// Category returns the single category a code maps to: its specific
// category, else its origin category, else ErrGeneric.
func Category(code ErrorCode) error {
	if err, ok := specificCategories[code]; ok {
		return err
	}
	if err, ok := originCategories[code.Origin()]; ok {
		return err
	}
	return ErrGeneric
}

// Error is a failed native call.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("qdb: error %#08x", uint32(e.Code))
	}
	return fmt.Sprintf("qdb: %s (%#08x)", e.Message, uint32(e.Code))
}

// Category is shorthand for Category(e.Code).
func (e *Error) Category() error { return Category(e.Code) }

// Unwrap exposes both the category and the origin category, so
// errors.Is(err, ErrAliasNotFound) and errors.Is(err, ErrOperation) both hold.
func (e *Error) Unwrap() []error {
	category := Category(e.Code)
	origin, ok := originCategories[e.Code.Origin()]
	if !ok || origin == category {
		return []error{category}
	}
	return []error{category, origin}
}

func newLocalError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Errors raised by this package before any native call is made.
var (
	ErrHandleClosed   = newLocalError(QDB_E_INVALID_ARGUMENT, "handle closed")
	ErrEmptyAlias     = newLocalError(QDB_E_INVALID_ARGUMENT, "empty alias")
	ErrLengthMismatch = newLocalError(QDB_E_INVALID_ARGUMENT, "timestamps and values differ in length")
	ErrZeroCapacity   = newLocalError(QDB_E_INVALID_ARGUMENT, "pin capacity must be positive")
	ErrBatchReleased  = newLocalError(QDB_E_INVALID_HANDLE, "batch table released")
	ErrTableReleased  = newLocalError(QDB_E_INVALID_HANDLE, "local table released")
	ErrBufferReleased = newLocalError(QDB_E_INVALID_HANDLE, "native buffer released")
)

// ErrCriticalSection flags an allocation attempted while a critical view
// is held. It is a programming error in this package, never a native one.
var ErrCriticalSection = errors.New("qdb: allocation while a critical view is held")

func incompatibleType(what string, t fmt.Stringer) *Error {
	return newLocalError(QDB_E_INCOMPATIBLE_TYPE, fmt.Sprintf("%s: unsupported type %v", what, t))
}

// check returns code unchanged on success so calls can be chained.
// On failure it returns exactly one *Error carrying the handle's last error
// message, or the static description when the handle recorded another code.
func check(h QdbHandle, code ErrorCode) (ErrorCode, error) {
	return checkAllowed(h, code)
}

// checkAllowed is check with extra codes treated as success.
func checkAllowed(h QdbHandle, code ErrorCode, allowed ...ErrorCode) (ErrorCode, error) {
	if code.Success() || slices.Contains(allowed, code) {
		return code, nil
	}
	last, msg := qdb_get_last_error(h)
	if last != code || msg == "" {
		msg = qdb_error(code)
	}
	return code, &Error{Code: code, Message: msg}
}
