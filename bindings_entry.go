package qdb

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// Symbols returning a native copy of some content share one shape.
type c_get_content_fn func(
	handle unsafe.Pointer,
	alias string,
	content unsafe.Pointer, // const void**
	contentLength unsafe.Pointer, // qdb_size_t*
) qdb_error_t

type c_put_content_fn func(
	handle unsafe.Pointer,
	alias string,
	content unsafe.Pointer,
	contentLength uintptr,
	expiry int64, // qdb_time_t
) qdb_error_t

type c_content_fn func(
	handle unsafe.Pointer,
	alias string,
	content unsafe.Pointer,
	contentLength uintptr,
) qdb_error_t

type c_tag_fn func(
	handle unsafe.Pointer,
	alias string,
	tag string,
) qdb_error_t

type c_tag_iterator_fn func(
	iterator unsafe.Pointer,
) qdb_error_t

var (
	c_qdb_blob_put            c_put_content_fn
	c_qdb_blob_update         c_put_content_fn
	c_qdb_blob_get            c_get_content_fn
	c_qdb_blob_get_and_remove c_get_content_fn
	c_qdb_blob_remove_if      c_content_fn

	c_qdb_blob_get_and_update func(
		handle unsafe.Pointer,
		alias string,
		content unsafe.Pointer,
		contentLength uintptr,
		expiry int64,
		original unsafe.Pointer, // const void**
		originalLength unsafe.Pointer, // qdb_size_t*
	) qdb_error_t

	c_qdb_blob_compare_and_swap func(
		handle unsafe.Pointer,
		alias string,
		content unsafe.Pointer,
		contentLength uintptr,
		comparand unsafe.Pointer,
		comparandLength uintptr,
		expiry int64,
		original unsafe.Pointer, // const void**
		originalLength unsafe.Pointer, // qdb_size_t*
	) qdb_error_t

	c_qdb_int_put    func(handle unsafe.Pointer, alias string, value int64, expiry int64) qdb_error_t
	c_qdb_int_update func(handle unsafe.Pointer, alias string, value int64, expiry int64) qdb_error_t
	c_qdb_int_get    func(handle unsafe.Pointer, alias string, value unsafe.Pointer) qdb_error_t
	c_qdb_int_add    func(handle unsafe.Pointer, alias string, addend int64, result unsafe.Pointer) qdb_error_t

	c_qdb_double_put    func(handle unsafe.Pointer, alias string, value float64, expiry int64) qdb_error_t
	c_qdb_double_update func(handle unsafe.Pointer, alias string, value float64, expiry int64) qdb_error_t
	c_qdb_double_get    func(handle unsafe.Pointer, alias string, value unsafe.Pointer) qdb_error_t

	c_qdb_string_put    c_put_content_fn
	c_qdb_string_update c_put_content_fn
	c_qdb_string_get    c_get_content_fn

	c_qdb_timestamp_put    func(handle unsafe.Pointer, alias string, value unsafe.Pointer, expiry int64) qdb_error_t
	c_qdb_timestamp_update func(handle unsafe.Pointer, alias string, value unsafe.Pointer, expiry int64) qdb_error_t
	c_qdb_timestamp_get    func(handle unsafe.Pointer, alias string, value unsafe.Pointer) qdb_error_t

	c_qdb_attach_tag c_tag_fn
	c_qdb_detach_tag c_tag_fn
	c_qdb_has_tag    c_tag_fn

	c_qdb_get_tags func(
		handle unsafe.Pointer,
		alias string,
		tags unsafe.Pointer, // const char***
		tagCount unsafe.Pointer, // qdb_size_t*
	) qdb_error_t

	c_qdb_tag_iterator_begin func(
		handle unsafe.Pointer,
		tag string,
		iterator unsafe.Pointer, // qdb_const_tag_iterator_t*
	) qdb_error_t

	c_qdb_tag_iterator_next  c_tag_iterator_fn
	c_qdb_tag_iterator_close c_tag_iterator_fn

	c_qdb_hset_insert   c_content_fn
	c_qdb_hset_erase    c_content_fn
	c_qdb_hset_contains c_content_fn

	c_qdb_deque_size func(handle unsafe.Pointer, alias string, size unsafe.Pointer) qdb_error_t

	c_qdb_deque_get_at func(
		handle unsafe.Pointer,
		alias string,
		index int64,
		content unsafe.Pointer,
		contentLength unsafe.Pointer,
	) qdb_error_t

	c_qdb_deque_set_at func(
		handle unsafe.Pointer,
		alias string,
		index int64,
		content unsafe.Pointer,
		contentLength uintptr,
	) qdb_error_t

	c_qdb_deque_push_front c_content_fn
	c_qdb_deque_push_back  c_content_fn
	c_qdb_deque_pop_front  c_get_content_fn
	c_qdb_deque_pop_back   c_get_content_fn
	c_qdb_deque_front      c_get_content_fn
	c_qdb_deque_back       c_get_content_fn
)

func register_qdb_entry(handle uintptr) {
	purego.RegisterLibFunc(&c_qdb_blob_put, handle, "qdb_blob_put")
	purego.RegisterLibFunc(&c_qdb_blob_update, handle, "qdb_blob_update")
	purego.RegisterLibFunc(&c_qdb_blob_get, handle, "qdb_blob_get")
	purego.RegisterLibFunc(&c_qdb_blob_get_and_remove, handle, "qdb_blob_get_and_remove")
	purego.RegisterLibFunc(&c_qdb_blob_remove_if, handle, "qdb_blob_remove_if")
	purego.RegisterLibFunc(&c_qdb_blob_get_and_update, handle, "qdb_blob_get_and_update")
	purego.RegisterLibFunc(&c_qdb_blob_compare_and_swap, handle, "qdb_blob_compare_and_swap")
	purego.RegisterLibFunc(&c_qdb_int_put, handle, "qdb_int_put")
	purego.RegisterLibFunc(&c_qdb_int_update, handle, "qdb_int_update")
	purego.RegisterLibFunc(&c_qdb_int_get, handle, "qdb_int_get")
	purego.RegisterLibFunc(&c_qdb_int_add, handle, "qdb_int_add")
	purego.RegisterLibFunc(&c_qdb_double_put, handle, "qdb_double_put")
	purego.RegisterLibFunc(&c_qdb_double_update, handle, "qdb_double_update")
	purego.RegisterLibFunc(&c_qdb_double_get, handle, "qdb_double_get")
	purego.RegisterLibFunc(&c_qdb_string_put, handle, "qdb_string_put")
	purego.RegisterLibFunc(&c_qdb_string_update, handle, "qdb_string_update")
	purego.RegisterLibFunc(&c_qdb_string_get, handle, "qdb_string_get")
	purego.RegisterLibFunc(&c_qdb_timestamp_put, handle, "qdb_timestamp_put")
	purego.RegisterLibFunc(&c_qdb_timestamp_update, handle, "qdb_timestamp_update")
	purego.RegisterLibFunc(&c_qdb_timestamp_get, handle, "qdb_timestamp_get")
	purego.RegisterLibFunc(&c_qdb_attach_tag, handle, "qdb_attach_tag")
	purego.RegisterLibFunc(&c_qdb_detach_tag, handle, "qdb_detach_tag")
	purego.RegisterLibFunc(&c_qdb_has_tag, handle, "qdb_has_tag")
	purego.RegisterLibFunc(&c_qdb_get_tags, handle, "qdb_get_tags")
	purego.RegisterLibFunc(&c_qdb_tag_iterator_begin, handle, "qdb_tag_iterator_begin")
	purego.RegisterLibFunc(&c_qdb_tag_iterator_next, handle, "qdb_tag_iterator_next")
	purego.RegisterLibFunc(&c_qdb_tag_iterator_close, handle, "qdb_tag_iterator_close")
	purego.RegisterLibFunc(&c_qdb_hset_insert, handle, "qdb_hset_insert")
	purego.RegisterLibFunc(&c_qdb_hset_erase, handle, "qdb_hset_erase")
	purego.RegisterLibFunc(&c_qdb_hset_contains, handle, "qdb_hset_contains")
	purego.RegisterLibFunc(&c_qdb_deque_size, handle, "qdb_deque_size")
	purego.RegisterLibFunc(&c_qdb_deque_get_at, handle, "qdb_deque_get_at")
	purego.RegisterLibFunc(&c_qdb_deque_set_at, handle, "qdb_deque_set_at")
	purego.RegisterLibFunc(&c_qdb_deque_push_front, handle, "qdb_deque_push_front")
	purego.RegisterLibFunc(&c_qdb_deque_push_back, handle, "qdb_deque_push_back")
	purego.RegisterLibFunc(&c_qdb_deque_pop_front, handle, "qdb_deque_pop_front")
	purego.RegisterLibFunc(&c_qdb_deque_pop_back, handle, "qdb_deque_pop_back")
	purego.RegisterLibFunc(&c_qdb_deque_front, handle, "qdb_deque_front")
	purego.RegisterLibFunc(&c_qdb_deque_back, handle, "qdb_deque_back")
}

// Go wrappers over imported C bindings

func qdb_put_content(h QdbHandle, fn c_put_content_fn, alias string, content ByteView, expiry int64) error {
	_, err := check(h, ErrorCode(fn(unsafe.Pointer(h), alias, content.Ptr, uintptr(content.Len), expiry)))
	return err
}

func qdb_content(h QdbHandle, fn c_content_fn, alias string, content ByteView, allowed ...ErrorCode) (ErrorCode, error) {
	return checkAllowed(h, ErrorCode(fn(unsafe.Pointer(h), alias, content.Ptr, uintptr(content.Len))), allowed...)
}

/** Fetch content into a native buffer. The caller owns the returned guard. */
func qdb_get_content(h QdbHandle, fn c_get_content_fn, alias string) (*nativeResource, int, error) {
	var content unsafe.Pointer
	var n uintptr
	if _, err := check(h, ErrorCode(fn(unsafe.Pointer(h), alias, unsafe.Pointer(&content), unsafe.Pointer(&n)))); err != nil {
		return nil, 0, err
	}
	return ownNative(h, content), int(n), nil
}

/** Fetch content and copy it into Go memory; the native buffer is released */
func qdb_get_content_copy(h QdbHandle, fn c_get_content_fn, alias string) ([]byte, error) {
	res, n, err := qdb_get_content(h, fn, alias)
	if err != nil {
		return nil, err
	}
	defer res.Release()
	return copyNativeBytes(uintptr(res.Ptr()), n), nil
}

func qdb_blob_get_and_update(h QdbHandle, alias string, content ByteView, expiry int64) ([]byte, error) {
	var orig unsafe.Pointer
	var n uintptr
	code := ErrorCode(c_qdb_blob_get_and_update(unsafe.Pointer(h), alias, content.Ptr, uintptr(content.Len), expiry, unsafe.Pointer(&orig), unsafe.Pointer(&n)))
	if _, err := check(h, code); err != nil {
		return nil, err
	}
	res := ownNative(h, orig)
	defer res.Release()
	return copyNativeBytes(uintptr(res.Ptr()), int(n)), nil
}

/** Compare and swap. On QDB_E_UNMATCHED_CONTENT the current content is
 * returned together with the error.
 */
func qdb_blob_compare_and_swap(h QdbHandle, alias string, content, comparand ByteView, expiry int64) ([]byte, error) {
	var orig unsafe.Pointer
	var n uintptr
	code := ErrorCode(c_qdb_blob_compare_and_swap(unsafe.Pointer(h), alias,
		content.Ptr, uintptr(content.Len),
		comparand.Ptr, uintptr(comparand.Len),
		expiry, unsafe.Pointer(&orig), unsafe.Pointer(&n)))
	res := ownNative(h, orig)
	defer res.Release()
	if _, err := check(h, code); err != nil {
		return copyNativeBytes(uintptr(res.Ptr()), int(n)), err
	}
	return nil, nil
}

func qdb_int_get(h QdbHandle, alias string) (int64, error) {
	var v int64
	if _, err := check(h, ErrorCode(c_qdb_int_get(unsafe.Pointer(h), alias, unsafe.Pointer(&v)))); err != nil {
		return 0, err
	}
	return v, nil
}

func qdb_int_add(h QdbHandle, alias string, addend int64) (int64, error) {
	var v int64
	if _, err := check(h, ErrorCode(c_qdb_int_add(unsafe.Pointer(h), alias, addend, unsafe.Pointer(&v)))); err != nil {
		return 0, err
	}
	return v, nil
}

func qdb_double_get(h QdbHandle, alias string) (float64, error) {
	var v float64
	if _, err := check(h, ErrorCode(c_qdb_double_get(unsafe.Pointer(h), alias, unsafe.Pointer(&v)))); err != nil {
		return 0, err
	}
	return v, nil
}

func qdb_timestamp_get(h QdbHandle, alias string) (Timespec, error) {
	var v c_qdb_timespec_t
	if _, err := check(h, ErrorCode(c_qdb_timestamp_get(unsafe.Pointer(h), alias, unsafe.Pointer(&v)))); err != nil {
		return Timespec{}, err
	}
	return Timespec(v), nil
}

func qdb_tag(h QdbHandle, fn c_tag_fn, alias, tag string, allowed ...ErrorCode) (ErrorCode, error) {
	return checkAllowed(h, ErrorCode(fn(unsafe.Pointer(h), alias, tag)), allowed...)
}

func qdb_get_tags(h QdbHandle, alias string) ([]string, error) {
	var tags unsafe.Pointer
	var n uintptr
	if _, err := check(h, ErrorCode(c_qdb_get_tags(unsafe.Pointer(h), alias, unsafe.Pointer(&tags), unsafe.Pointer(&n)))); err != nil {
		return nil, err
	}
	res := ownNative(h, tags)
	defer res.Release()
	ptrs := nativePoints[uintptr](res.Ptr(), int(n))
	out := make([]string, len(ptrs))
	for i, p := range ptrs {
		out[i] = copyCString(unsafe.Pointer(p))
	}
	return out, nil
}

/** Position it on the first entry tagged with tag. ok is false when there is none. */
func qdb_tag_iterator_begin(h QdbHandle, tag string, it QdbTagIterator) (ok bool, err error) {
	code, err := checkAllowed(h, ErrorCode(c_qdb_tag_iterator_begin(unsafe.Pointer(h), tag, unsafe.Pointer(it))), QDB_E_ITERATOR_END)
	return err == nil && code != QDB_E_ITERATOR_END, err
}

func qdb_tag_iterator_next(h QdbHandle, it QdbTagIterator) (ok bool, err error) {
	code, err := checkAllowed(h, ErrorCode(c_qdb_tag_iterator_next(unsafe.Pointer(it))), QDB_E_ITERATOR_END)
	return err == nil && code != QDB_E_ITERATOR_END, err
}

func qdb_tag_iterator_close(h QdbHandle, it QdbTagIterator) error {
	_, err := check(h, ErrorCode(c_qdb_tag_iterator_close(unsafe.Pointer(it))))
	return err
}

func qdb_deque_size(h QdbHandle, alias string) (int, error) {
	var n uintptr
	if _, err := check(h, ErrorCode(c_qdb_deque_size(unsafe.Pointer(h), alias, unsafe.Pointer(&n)))); err != nil {
		return 0, err
	}
	return int(n), nil
}

func qdb_deque_get_at(h QdbHandle, alias string, index int64) ([]byte, error) {
	var content unsafe.Pointer
	var n uintptr
	if _, err := check(h, ErrorCode(c_qdb_deque_get_at(unsafe.Pointer(h), alias, index, unsafe.Pointer(&content), unsafe.Pointer(&n)))); err != nil {
		return nil, err
	}
	res := ownNative(h, content)
	defer res.Release()
	return copyNativeBytes(uintptr(res.Ptr()), int(n)), nil
}

func qdb_deque_set_at(h QdbHandle, alias string, index int64, content ByteView) error {
	_, err := check(h, ErrorCode(c_qdb_deque_set_at(unsafe.Pointer(h), alias, index, content.Ptr, uintptr(content.Len))))
	return err
}
