package qdb

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// define opaque pointers as-is and accept them as exact arguments
type qdb_handle_internal struct{}
type qdb_batch_table_internal struct{}
type qdb_local_table_internal struct{}

// qdb_const_tag_iterator_t is caller-allocated, so its layout is spelled out.
type qdb_tag_iterator_internal struct {
	Handle uintptr
	Token  uintptr
	Alias  uintptr // const char*
	Type   int32   // qdb_entry_type_t
	_      [4]byte
}

// Distinct pointer types per resource kind, so a batch table can never be
// passed where a handle is expected.
type QdbHandle *qdb_handle_internal
type QdbBatchTable *qdb_batch_table_internal
type QdbLocalTable *qdb_local_table_internal
type QdbTagIterator *qdb_tag_iterator_internal

// EntryType is the kind of an entry as reported by the cluster.
type EntryType int32

const (
	EntryUninitialized EntryType = -1
	EntryBlob          EntryType = 0
	EntryInteger       EntryType = 1
	EntryHSet          EntryType = 2
	EntryTag           EntryType = 3
	EntryDeque         EntryType = 4
	EntryStream        EntryType = 5
	EntryTimeSeries    EntryType = 6
	EntryDouble        EntryType = 7
	EntryString        EntryType = 8
	EntryTimestamp     EntryType = 9
)

// NativeLogLevel mirrors qdb_log_level_t.
type NativeLogLevel int32

const (
	NativeLogDetailed NativeLogLevel = 100
	NativeLogDebug    NativeLogLevel = 200
	NativeLogInfo     NativeLogLevel = 300
	NativeLogWarning  NativeLogLevel = 400
	NativeLogError    NativeLogLevel = 500
	NativeLogPanic    NativeLogLevel = 600
)

// define all necessary private C structs
// private C structs MUST have fields with low level types (e.g. uintptr, numbers)
type qdb_error_t uint32

type c_qdb_string_t struct {
	Data   uintptr // const char*
	Length uintptr // qdb_size_t
}

type c_qdb_blob_t struct {
	Content       uintptr // const void*
	ContentLength uintptr // qdb_size_t
}

type c_qdb_timespec_t struct {
	Sec  int64
	Nsec int64
}

// then, define C extern methods
var (
	c_qdb_version func() uintptr // const char*
	c_qdb_build   func() uintptr // const char*

	c_qdb_error func(
		code qdb_error_t,
	) uintptr // const char*

	c_qdb_open_tcp func() unsafe.Pointer // qdb_handle_t

	c_qdb_connect func(
		handle unsafe.Pointer,
		uri string,
	) qdb_error_t

	c_qdb_close func(
		handle unsafe.Pointer,
	) qdb_error_t

	c_qdb_release func(
		handle unsafe.Pointer,
		buffer unsafe.Pointer,
	)

	c_qdb_alloc_buffer func(
		handle unsafe.Pointer,
		size uintptr, // qdb_size_t
		buffer unsafe.Pointer, // const void**
	) qdb_error_t

	c_qdb_get_last_error func(
		handle unsafe.Pointer,
		code unsafe.Pointer, // qdb_error_t*
		message unsafe.Pointer, // const qdb_string_t**
	) qdb_error_t

	c_qdb_option_set_timeout func(
		handle unsafe.Pointer,
		timeoutMs int32,
	) qdb_error_t

	c_qdb_option_set_cluster_public_key func(
		handle unsafe.Pointer,
		publicKey string,
	) qdb_error_t

	c_qdb_option_set_user_credentials func(
		handle unsafe.Pointer,
		userName string,
		userPrivateKey string,
	) qdb_error_t

	c_qdb_purge_all func(
		handle unsafe.Pointer,
		timeoutMs int32,
	) qdb_error_t

	c_qdb_trim_all func(
		handle unsafe.Pointer,
		timeoutMs int32,
	) qdb_error_t

	c_qdb_remove func(
		handle unsafe.Pointer,
		alias string,
	) qdb_error_t

	c_qdb_get_type func(
		handle unsafe.Pointer,
		alias string,
		entryType unsafe.Pointer, // qdb_entry_type_t*
	) qdb_error_t

	c_qdb_expires_at func(
		handle unsafe.Pointer,
		alias string,
		expiryMs int64, // qdb_time_t, milliseconds since epoch
	) qdb_error_t

	c_qdb_log_add_callback func(
		callback uintptr, // qdb_log_callback
		callbackID unsafe.Pointer, // qdb_log_callback_id*
	) qdb_error_t

	c_qdb_log_remove_callback func(
		callbackID uintptr, // qdb_log_callback_id
	) qdb_error_t
)

func register_qdb_client(handle uintptr) {
	purego.RegisterLibFunc(&c_qdb_version, handle, "qdb_version")
	purego.RegisterLibFunc(&c_qdb_build, handle, "qdb_build")
	purego.RegisterLibFunc(&c_qdb_error, handle, "qdb_error")
	purego.RegisterLibFunc(&c_qdb_open_tcp, handle, "qdb_open_tcp")
	purego.RegisterLibFunc(&c_qdb_connect, handle, "qdb_connect")
	purego.RegisterLibFunc(&c_qdb_close, handle, "qdb_close")
	purego.RegisterLibFunc(&c_qdb_release, handle, "qdb_release")
	purego.RegisterLibFunc(&c_qdb_alloc_buffer, handle, "qdb_alloc_buffer")
	purego.RegisterLibFunc(&c_qdb_get_last_error, handle, "qdb_get_last_error")
	purego.RegisterLibFunc(&c_qdb_option_set_timeout, handle, "qdb_option_set_timeout")
	purego.RegisterLibFunc(&c_qdb_option_set_cluster_public_key, handle, "qdb_option_set_cluster_public_key")
	purego.RegisterLibFunc(&c_qdb_option_set_user_credentials, handle, "qdb_option_set_user_credentials")
	purego.RegisterLibFunc(&c_qdb_purge_all, handle, "qdb_purge_all")
	purego.RegisterLibFunc(&c_qdb_trim_all, handle, "qdb_trim_all")
	purego.RegisterLibFunc(&c_qdb_remove, handle, "qdb_remove")
	purego.RegisterLibFunc(&c_qdb_get_type, handle, "qdb_get_type")
	purego.RegisterLibFunc(&c_qdb_expires_at, handle, "qdb_expires_at")
	purego.RegisterLibFunc(&c_qdb_log_add_callback, handle, "qdb_log_add_callback")
	purego.RegisterLibFunc(&c_qdb_log_remove_callback, handle, "qdb_log_remove_callback")
}

func copyCString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	base := uintptr(p)
	n := 0
	for *(*byte)(unsafe.Pointer(base + uintptr(n))) != 0 {
		n++
	}
	return copyNativeString(base, n)
}

// copyNativeBytes copies n bytes of native memory into a new Go slice.
// A nil pointer or zero length yields nil.
func copyNativeBytes(ptr uintptr, n int) []byte {
	if ptr == 0 || n <= 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
	return out
}

func copyNativeString(ptr uintptr, n int) string {
	if ptr == 0 || n <= 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
}

func (s c_qdb_string_t) String() string {
	return copyNativeString(s.Data, int(s.Length))
}

// Go wrappers over imported C bindings

/** Version string of the native library */
func qdb_version() string {
	if c_qdb_version == nil {
		return ""
	}
	return copyCString(unsafe.Pointer(c_qdb_version()))
}

/** Build string of the native library */
func qdb_build() string {
	if c_qdb_build == nil {
		return ""
	}
	return copyCString(unsafe.Pointer(c_qdb_build()))
}

/** Static description of an error code */
func qdb_error(code ErrorCode) string {
	if c_qdb_error == nil {
		return ""
	}
	return copyCString(unsafe.Pointer(c_qdb_error(qdb_error_t(code))))
}

/** Allocate a new, unconnected TCP handle */
func qdb_open_tcp() (QdbHandle, error) {
	h := QdbHandle(c_qdb_open_tcp())
	if h == nil {
		return nil, newLocalError(QDB_E_NO_MEMORY_LOCAL, "qdb_open_tcp returned a null handle")
	}
	return h, nil
}

/** Connect the handle to a cluster URI (qdb://host:port) */
func qdb_connect(h QdbHandle, uri string) error {
	_, err := check(h, ErrorCode(c_qdb_connect(unsafe.Pointer(h), uri)))
	return err
}

/** Close the handle and free every resource it still owns
 * SAFETY: caller must ensure that no other code can concurrently or later use the handle
 */
func qdb_close(h QdbHandle) error {
	if h == nil {
		return nil
	}
	code := ErrorCode(c_qdb_close(unsafe.Pointer(h)))
	if code.Failure() {
		// last error lives in the handle being torn down
		return newLocalError(code, qdb_error(code))
	}
	return nil
}

/** Release a buffer previously handed out by the native API */
func qdb_release(h QdbHandle, ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	c_qdb_release(unsafe.Pointer(h), ptr)
}

/** Allocate size bytes with the native allocator; release with qdb_release */
func qdb_alloc_buffer(h QdbHandle, size int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, newLocalError(QDB_E_INVALID_ARGUMENT, "buffer size must be positive")
	}
	var buf uintptr
	if _, err := check(h, ErrorCode(c_qdb_alloc_buffer(unsafe.Pointer(h), uintptr(size), unsafe.Pointer(&buf)))); err != nil {
		return nil, err
	}
	return unsafe.Pointer(buf), nil
}

/** Last error recorded on the handle, with its message copied */
func qdb_get_last_error(h QdbHandle) (ErrorCode, string) {
	if h == nil || c_qdb_get_last_error == nil {
		return QDB_E_OK, ""
	}
	var code qdb_error_t
	var msg uintptr // const qdb_string_t*
	if ErrorCode(c_qdb_get_last_error(unsafe.Pointer(h), unsafe.Pointer(&code), unsafe.Pointer(&msg))).Failure() {
		return QDB_E_OK, ""
	}
	if msg == 0 {
		return ErrorCode(code), ""
	}
	return ErrorCode(code), (*c_qdb_string_t)(unsafe.Pointer(msg)).String()
}

func qdb_option_set_timeout(h QdbHandle, timeoutMs int32) error {
	_, err := check(h, ErrorCode(c_qdb_option_set_timeout(unsafe.Pointer(h), timeoutMs)))
	return err
}

func qdb_option_set_cluster_public_key(h QdbHandle, publicKey string) error {
	_, err := check(h, ErrorCode(c_qdb_option_set_cluster_public_key(unsafe.Pointer(h), publicKey)))
	return err
}

func qdb_option_set_user_credentials(h QdbHandle, user, privateKey string) error {
	_, err := check(h, ErrorCode(c_qdb_option_set_user_credentials(unsafe.Pointer(h), user, privateKey)))
	return err
}

func qdb_purge_all(h QdbHandle, timeoutMs int32) error {
	_, err := check(h, ErrorCode(c_qdb_purge_all(unsafe.Pointer(h), timeoutMs)))
	return err
}

func qdb_trim_all(h QdbHandle, timeoutMs int32) error {
	_, err := check(h, ErrorCode(c_qdb_trim_all(unsafe.Pointer(h), timeoutMs)))
	return err
}

func qdb_remove(h QdbHandle, alias string) error {
	_, err := check(h, ErrorCode(c_qdb_remove(unsafe.Pointer(h), alias)))
	return err
}

func qdb_get_type(h QdbHandle, alias string) (EntryType, error) {
	t := EntryUninitialized
	if _, err := check(h, ErrorCode(c_qdb_get_type(unsafe.Pointer(h), alias, unsafe.Pointer(&t)))); err != nil {
		return EntryUninitialized, err
	}
	return t, nil
}

func qdb_expires_at(h QdbHandle, alias string, expiryMs int64) error {
	_, err := check(h, ErrorCode(c_qdb_expires_at(unsafe.Pointer(h), alias, expiryMs)))
	return err
}
