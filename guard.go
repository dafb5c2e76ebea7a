package qdb

import (
	"runtime"
	"unsafe"

	"go.uber.org/zap"
)

// releaser is anything a frame releases on exit.
type releaser interface {
	Release()
}

// scope runs its release function exactly once, however many times Release
// is called.
type scope struct {
	release func()
	done    bool
}

func (s *scope) Release() {
	if s.done {
		return
	}
	s.done = true
	if s.release != nil {
		s.release()
	}
}

// Released reports whether Release already ran.
func (s *scope) Released() bool { return s.done }

// frame scopes the Go memory borrowed by one native call. Guards acquired
// through a frame are released in reverse order by close, which callers
// defer right after newFrame so panics are covered too.
//
// While a critical view is held the frame refuses every allocation helper
// with ErrCriticalSection.
type frame struct {
	guards   []releaser
	critical int
}

func newFrame() *frame {
	return &frame{}
}

func (f *frame) close() {
	for i := len(f.guards) - 1; i >= 0; i-- {
		f.guards[i].Release()
	}
	f.guards = nil
}

func (f *frame) track(r releaser) {
	f.guards = append(f.guards, r)
}

func (f *frame) ensureNotCritical(op string) error {
	if f.critical > 0 {
		Logger().DPanic("critical view violation", zap.String("op", op))
		return ErrCriticalSection
	}
	return nil
}

// alloc returns n zeroed bytes of Go memory owned by the frame's caller.
func (f *frame) alloc(n int) ([]byte, error) {
	if err := f.ensureNotCritical("alloc"); err != nil {
		return nil, err
	}
	return make([]byte, n), nil
}

// makeSlice is alloc for typed slices.
func makeSlice[T any](f *frame, n int) ([]T, error) {
	if err := f.ensureNotCritical("make"); err != nil {
		return nil, err
	}
	return make([]T, n), nil
}

// pin keeps the object behind p in place until the frame closes. Pointers
// outside the Go heap are ignored by the runtime.
func (f *frame) pin(p any) error {
	if err := f.ensureNotCritical("pin"); err != nil {
		return err
	}
	var pinner runtime.Pinner
	pinner.Pin(p)
	f.track(&scope{release: pinner.Unpin})
	return nil
}

// ----------------------------- string view -----------------------------

// StringView is a NUL-terminated copy of a Go string that stays at a fixed
// address until released.
type StringView struct {
	scope
	buf []byte
}

// acquireString borrows s for native code that reads it through a struct
// field. An empty string is rejected; use acquireOptionalString when NULL
// is acceptable.
func acquireString(f *frame, s string) (*StringView, error) {
	if s == "" {
		return nil, newLocalError(QDB_E_INVALID_ARGUMENT, "empty string argument")
	}
	return acquireStringView(f, s)
}

// acquireOptionalString maps "" to a NULL view without acquiring anything.
func acquireOptionalString(f *frame, s string) (*StringView, error) {
	if s == "" {
		return &StringView{scope: scope{done: true}}, nil
	}
	return acquireStringView(f, s)
}

func acquireStringView(f *frame, s string) (*StringView, error) {
	buf, err := f.alloc(len(s) + 1)
	if err != nil {
		return nil, err
	}
	copy(buf, s)
	var pinner runtime.Pinner
	pinner.Pin(&buf[0])
	v := &StringView{scope: scope{release: pinner.Unpin}, buf: buf}
	f.track(v)
	return v, nil
}

// Ptr is the const char* for the view, 0 for NULL.
func (v *StringView) Ptr() uintptr {
	if len(v.buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&v.buf[0]))
}

// Len excludes the terminator.
func (v *StringView) Len() int {
	if len(v.buf) == 0 {
		return 0
	}
	return len(v.buf) - 1
}

// ------------------------- critical array view -------------------------

// CriticalView exposes the backing array of a Go slice to native code.
// Nothing may be allocated through the owning frame until it is released,
// so it must be the last guard acquired before the native call.
type CriticalView[T any] struct {
	scope
	data []T
}

func acquireCritical[T any](f *frame, data []T) (*CriticalView[T], error) {
	if err := f.ensureNotCritical("acquire critical"); err != nil {
		return nil, err
	}
	v := &CriticalView[T]{data: data}
	// track before raising the counter: tracking appends
	f.track(v)
	var pinner runtime.Pinner
	if len(data) > 0 {
		pinner.Pin(&data[0])
	}
	f.critical++
	v.release = func() {
		f.critical--
		pinner.Unpin()
	}
	return v, nil
}

// Ptr points at the first element, or is nil for an empty slice.
func (v *CriticalView[T]) Ptr() unsafe.Pointer {
	if len(v.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&v.data[0])
}

func (v *CriticalView[T]) Len() int { return len(v.data) }

// --------------------------- byte-buffer view --------------------------

// ByteView is the address and length of a caller-owned byte slice. It is
// not checked out from anything, so there is nothing to release.
type ByteView struct {
	Ptr unsafe.Pointer
	Len int
}

func borrowBytes(b []byte) ByteView {
	if len(b) == 0 {
		return ByteView{}
	}
	return ByteView{Ptr: unsafe.Pointer(&b[0]), Len: len(b)}
}

func borrowStringBytes(s string) ByteView {
	if len(s) == 0 {
		return ByteView{}
	}
	return ByteView{Ptr: unsafe.Pointer(unsafe.StringData(s)), Len: len(s)}
}

// --------------------------- native resource ---------------------------

// nativeResource owns memory handed out by the native API. Release calls
// qdb_release once, unless Disown transferred ownership beforehand.
type nativeResource struct {
	scope
	h   QdbHandle
	ptr unsafe.Pointer
}

func ownNative(h QdbHandle, ptr unsafe.Pointer) *nativeResource {
	r := &nativeResource{h: h, ptr: ptr}
	r.release = func() {
		qdb_release(r.h, r.ptr)
		r.ptr = nil
	}
	return r
}

// Ptr is the owned pointer, nil once released or disowned.
func (r *nativeResource) Ptr() unsafe.Pointer { return r.ptr }

// Disown disarms the guard and hands the pointer to the caller, who becomes
// responsible for releasing it.
func (r *nativeResource) Disown() unsafe.Pointer {
	p := r.ptr
	r.ptr = nil
	r.done = true
	return p
}
