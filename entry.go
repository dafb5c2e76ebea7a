package qdb

import (
	"runtime"
	"time"
	"unsafe"
)

// Entry point methods take an expiry as a time.Time; the zero time means
// the entry never expires.

// ------------------------------- blobs -------------------------------

func (h *Handle) BlobPut(alias string, content []byte, expiry time.Time) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	return qdb_put_content(c.h, c_qdb_blob_put, alias, borrowBytes(content), expiryMillis(expiry))
}

// BlobUpdate creates or replaces a blob. created reports which.
func (h *Handle) BlobUpdate(alias string, content []byte, expiry time.Time) (created bool, err error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return false, err
	}
	defer c.exit()
	code := ErrorCode(c_qdb_blob_update(unsafe.Pointer(c.h), alias, borrowBytes(content).Ptr, uintptr(len(content)), expiryMillis(expiry)))
	code, err = check(c.h, code)
	return code == QDB_E_OK_CREATED, err
}

// BlobGet copies the blob into Go memory and releases the native copy.
func (h *Handle) BlobGet(alias string) ([]byte, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	return qdb_get_content_copy(c.h, c_qdb_blob_get, alias)
}

// BlobGetNoCopy hands the native copy of the blob to the caller without
// copying it again. The caller must Close the buffer.
func (h *Handle) BlobGetNoCopy(alias string) (*NativeBuffer, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	res, n, err := qdb_get_content(c.h, c_qdb_blob_get, alias)
	if err != nil {
		return nil, err
	}
	// ownership moves to the buffer; res no longer releases anything
	return newNativeBuffer(h, res.Disown(), n), nil
}

func (h *Handle) BlobGetAndRemove(alias string) ([]byte, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	return qdb_get_content_copy(c.h, c_qdb_blob_get_and_remove, alias)
}

// BlobGetAndUpdate replaces the blob and returns its previous content.
func (h *Handle) BlobGetAndUpdate(alias string, content []byte, expiry time.Time) ([]byte, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	return qdb_blob_get_and_update(c.h, alias, borrowBytes(content), expiryMillis(expiry))
}

// BlobRemoveIf removes the blob when its content equals comparand.
func (h *Handle) BlobRemoveIf(alias string, comparand []byte) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	_, err = qdb_content(c.h, c_qdb_blob_remove_if, alias, borrowBytes(comparand))
	return err
}

// BlobCompareAndSwap replaces the blob when it equals comparand. When it
// does not, the current content is returned along with an *Error whose
// code is QDB_E_UNMATCHED_CONTENT.
func (h *Handle) BlobCompareAndSwap(alias string, content, comparand []byte, expiry time.Time) ([]byte, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	return qdb_blob_compare_and_swap(c.h, alias, borrowBytes(content), borrowBytes(comparand), expiryMillis(expiry))
}

// ------------------------------ integers ------------------------------

func (h *Handle) IntPut(alias string, v int64, expiry time.Time) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	_, err = check(c.h, ErrorCode(c_qdb_int_put(unsafe.Pointer(c.h), alias, v, expiryMillis(expiry))))
	return err
}

func (h *Handle) IntUpdate(alias string, v int64, expiry time.Time) (created bool, err error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return false, err
	}
	defer c.exit()
	code, err := check(c.h, ErrorCode(c_qdb_int_update(unsafe.Pointer(c.h), alias, v, expiryMillis(expiry))))
	return code == QDB_E_OK_CREATED, err
}

func (h *Handle) IntGet(alias string) (int64, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return 0, err
	}
	defer c.exit()
	return qdb_int_get(c.h, alias)
}

// IntAdd atomically adds delta and returns the new value.
func (h *Handle) IntAdd(alias string, delta int64) (int64, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return 0, err
	}
	defer c.exit()
	return qdb_int_add(c.h, alias, delta)
}

// ------------------------------- doubles -------------------------------

func (h *Handle) DoublePut(alias string, v float64, expiry time.Time) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	_, err = check(c.h, ErrorCode(c_qdb_double_put(unsafe.Pointer(c.h), alias, v, expiryMillis(expiry))))
	return err
}

func (h *Handle) DoubleUpdate(alias string, v float64, expiry time.Time) (created bool, err error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return false, err
	}
	defer c.exit()
	code, err := check(c.h, ErrorCode(c_qdb_double_update(unsafe.Pointer(c.h), alias, v, expiryMillis(expiry))))
	return code == QDB_E_OK_CREATED, err
}

func (h *Handle) DoubleGet(alias string) (float64, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return 0, err
	}
	defer c.exit()
	return qdb_double_get(c.h, alias)
}

// ------------------------------- strings -------------------------------

func (h *Handle) StringPut(alias, v string, expiry time.Time) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	return qdb_put_content(c.h, c_qdb_string_put, alias, borrowStringBytes(v), expiryMillis(expiry))
}

func (h *Handle) StringUpdate(alias, v string, expiry time.Time) (created bool, err error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return false, err
	}
	defer c.exit()
	bv := borrowStringBytes(v)
	code, err := check(c.h, ErrorCode(c_qdb_string_update(unsafe.Pointer(c.h), alias, bv.Ptr, uintptr(bv.Len), expiryMillis(expiry))))
	return code == QDB_E_OK_CREATED, err
}

func (h *Handle) StringGet(alias string) (string, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return "", err
	}
	defer c.exit()
	b, err := qdb_get_content_copy(c.h, c_qdb_string_get, alias)
	return string(b), err
}

// ------------------------------ timestamps ------------------------------

func (h *Handle) TimestampPut(alias string, v Timespec, expiry time.Time) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	native := v.native()
	_, err = check(c.h, ErrorCode(c_qdb_timestamp_put(unsafe.Pointer(c.h), alias, unsafe.Pointer(&native), expiryMillis(expiry))))
	return err
}

func (h *Handle) TimestampUpdate(alias string, v Timespec, expiry time.Time) (created bool, err error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return false, err
	}
	defer c.exit()
	native := v.native()
	code, err := check(c.h, ErrorCode(c_qdb_timestamp_update(unsafe.Pointer(c.h), alias, unsafe.Pointer(&native), expiryMillis(expiry))))
	return code == QDB_E_OK_CREATED, err
}

func (h *Handle) TimestampGet(alias string) (Timespec, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return Timespec{}, err
	}
	defer c.exit()
	return qdb_timestamp_get(c.h, alias)
}

// --------------------------------- tags ---------------------------------

// AttachTag tags an entry. added is false when the tag was already set.
func (h *Handle) AttachTag(alias, tag string) (added bool, err error) {
	c, err := h.enterAlias(alias, tag)
	if err != nil {
		return false, err
	}
	defer c.exit()
	code, err := qdb_tag(c.h, c_qdb_attach_tag, alias, tag, QDB_E_TAG_ALREADY_SET)
	return err == nil && code != QDB_E_TAG_ALREADY_SET, err
}

// DetachTag removes a tag. removed is false when the tag was not set.
func (h *Handle) DetachTag(alias, tag string) (removed bool, err error) {
	c, err := h.enterAlias(alias, tag)
	if err != nil {
		return false, err
	}
	defer c.exit()
	code, err := qdb_tag(c.h, c_qdb_detach_tag, alias, tag, QDB_E_TAG_NOT_SET)
	return err == nil && code != QDB_E_TAG_NOT_SET, err
}

func (h *Handle) HasTag(alias, tag string) (bool, error) {
	c, err := h.enterAlias(alias, tag)
	if err != nil {
		return false, err
	}
	defer c.exit()
	code, err := qdb_tag(c.h, c_qdb_has_tag, alias, tag, QDB_E_TAG_NOT_SET)
	return err == nil && code != QDB_E_TAG_NOT_SET, err
}

func (h *Handle) GetTags(alias string) ([]string, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	return qdb_get_tags(c.h, alias)
}

// TaggedEntry is one result of a tag lookup.
type TaggedEntry struct {
	Alias string
	Type  EntryType
}

// ForEachTagged calls fn for every entry tagged with tag until fn returns
// false. The iterator is closed before ForEachTagged returns.
//
// fn runs without holding the handle, so it may call other Handle methods.
// If the handle is closed meanwhile, iteration stops with ErrHandleClosed.
func (h *Handle) ForEachTagged(tag string, fn func(TaggedEntry) bool) (err error) {
	c, err := h.enterAlias(tag)
	if err != nil {
		return err
	}
	it := QdbTagIterator(&qdb_tag_iterator_internal{})
	// the native side keeps the iterator address between calls
	var pinner runtime.Pinner
	pinner.Pin(it)
	defer pinner.Unpin()

	ok, err := qdb_tag_iterator_begin(c.h, tag, it)
	entry := currentTagged(it, ok)
	c.exit()
	if err != nil {
		return err
	}

	for ok && fn(entry) {
		if c, err = h.enter(); err != nil {
			// the iterator was freed along with the handle
			return err
		}
		ok, err = qdb_tag_iterator_next(c.h, it)
		entry = currentTagged(it, ok)
		c.exit()
		if err != nil {
			break
		}
	}

	c, cerr := h.enter()
	if cerr == nil {
		cerr = qdb_tag_iterator_close(c.h, it)
		c.exit()
	}
	if err == nil {
		err = cerr
	}
	return err
}

// currentTagged copies the entry the iterator points at. The alias lives in
// native memory, so it is read while the handle is held.
func currentTagged(it QdbTagIterator, ok bool) TaggedEntry {
	if !ok {
		return TaggedEntry{}
	}
	return TaggedEntry{Alias: copyCString(unsafe.Pointer(it.Alias)), Type: EntryType(it.Type)}
}

// EntriesWithTag collects ForEachTagged.
func (h *Handle) EntriesWithTag(tag string) ([]TaggedEntry, error) {
	var out []TaggedEntry
	err := h.ForEachTagged(tag, func(e TaggedEntry) bool {
		out = append(out, e)
		return true
	})
	return out, err
}

// -------------------------------- hsets --------------------------------

// HSetInsert adds content to the set. inserted is false when it was there.
func (h *Handle) HSetInsert(alias string, content []byte) (inserted bool, err error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return false, err
	}
	defer c.exit()
	code, err := qdb_content(c.h, c_qdb_hset_insert, alias, borrowBytes(content), QDB_E_ELEMENT_ALREADY_EXISTS)
	return err == nil && code != QDB_E_ELEMENT_ALREADY_EXISTS, err
}

func (h *Handle) HSetErase(alias string, content []byte) (erased bool, err error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return false, err
	}
	defer c.exit()
	code, err := qdb_content(c.h, c_qdb_hset_erase, alias, borrowBytes(content), QDB_E_ELEMENT_NOT_FOUND)
	return err == nil && code != QDB_E_ELEMENT_NOT_FOUND, err
}

func (h *Handle) HSetContains(alias string, content []byte) (bool, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return false, err
	}
	defer c.exit()
	code, err := qdb_content(c.h, c_qdb_hset_contains, alias, borrowBytes(content), QDB_E_ELEMENT_NOT_FOUND)
	return err == nil && code != QDB_E_ELEMENT_NOT_FOUND, err
}

// -------------------------------- deques --------------------------------

func (h *Handle) DequeSize(alias string) (int, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return 0, err
	}
	defer c.exit()
	return qdb_deque_size(c.h, alias)
}

// DequeGetAt reads the element at index; negative indexes count from the back.
func (h *Handle) DequeGetAt(alias string, index int64) ([]byte, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	return qdb_deque_get_at(c.h, alias, index)
}

func (h *Handle) DequeSetAt(alias string, index int64, content []byte) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	return qdb_deque_set_at(c.h, alias, index, borrowBytes(content))
}

func (h *Handle) DequePushFront(alias string, content []byte) error {
	return h.dequePush(c_qdb_deque_push_front, alias, content)
}

func (h *Handle) DequePushBack(alias string, content []byte) error {
	return h.dequePush(c_qdb_deque_push_back, alias, content)
}

func (h *Handle) dequePush(fn c_content_fn, alias string, content []byte) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	_, err = qdb_content(c.h, fn, alias, borrowBytes(content))
	return err
}

func (h *Handle) DequePopFront(alias string) ([]byte, error) {
	return h.dequeGet(c_qdb_deque_pop_front, alias)
}

func (h *Handle) DequePopBack(alias string) ([]byte, error) {
	return h.dequeGet(c_qdb_deque_pop_back, alias)
}

func (h *Handle) DequeFront(alias string) ([]byte, error) {
	return h.dequeGet(c_qdb_deque_front, alias)
}

func (h *Handle) DequeBack(alias string) ([]byte, error) {
	return h.dequeGet(c_qdb_deque_back, alias)
}

func (h *Handle) dequeGet(fn c_get_content_fn, alias string) ([]byte, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return nil, err
	}
	defer c.exit()
	return qdb_get_content_copy(c.h, fn, alias)
}
