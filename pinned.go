package qdb

import (
	"math"
	"runtime"
	"unsafe"
)

// PinnedColumn is one column of a batch table pinned for one shard. Both
// slices view native memory owned by the batch table and are exactly as
// long as the capacity that was pinned. TimeOffsets are nanoseconds from
// the shard start.
//
// The views are valid until the table is pushed, its column memory is
// released, or the table itself is released.
type PinnedColumn[T any] struct {
	Index       int
	Shard       Timespec
	TimeOffsets []int64
	Data        []T
}

func (p *PinnedColumn[T]) Len() int { return len(p.Data) }

// prefill writes null into every data slot and 0 into every offset, so
// rows the caller never fills are pushed as nulls.
func prefill[T any](offsets []int64, data []T, null T) {
	for i := range offsets {
		offsets[i] = 0
	}
	for i := range data {
		data[i] = null
	}
}

func checkColumnInput(dstOffsets []int64, offsets []int64, n int) error {
	if len(offsets) != n {
		return ErrLengthMismatch
	}
	if n > len(dstOffsets) {
		return newLocalError(QDB_E_OUT_OF_BOUNDS, "more rows than pinned capacity")
	}
	return nil
}

// copyDoubles stores every value with NaN collapsed onto the canonical null.
func copyDoubles(dstOffsets []int64, dst []float64, offsets []int64, values []float64) error {
	if err := checkColumnInput(dstOffsets, offsets, len(values)); err != nil {
		return err
	}
	copy(dstOffsets, offsets)
	for i, v := range values {
		dst[i] = normalizeDouble(v)
	}
	return nil
}

func copyInt64s(dstOffsets []int64, dst []int64, offsets []int64, values []int64) error {
	if err := checkColumnInput(dstOffsets, offsets, len(values)); err != nil {
		return err
	}
	copy(dstOffsets, offsets)
	copy(dst, values)
	return nil
}

// copyTimestamps zips secs and nsecs. A row whose both parts are MinTime is
// left untouched, keeping the null written by prefill.
func copyTimestamps(dstOffsets []int64, dst []Timespec, offsets []int64, secs, nsecs []int64) error {
	if len(secs) != len(nsecs) {
		return ErrLengthMismatch
	}
	if err := checkColumnInput(dstOffsets, offsets, len(secs)); err != nil {
		return err
	}
	copy(dstOffsets, offsets)
	for i := range secs {
		if secs[i] == MinTime && nsecs[i] == MinTime {
			continue
		}
		dst[i] = Timespec{Sec: secs[i], Nsec: nsecs[i]}
	}
	return nil
}

// copyBlobs stores references. Each non-empty value is pinned in p, which
// the caller unpins once native code no longer reads the column. Empty
// values stay null.
func copyBlobs(p *refPinner, dstOffsets []int64, dst []c_qdb_blob_t, offsets []int64, values [][]byte) error {
	if err := checkColumnInput(dstOffsets, offsets, len(values)); err != nil {
		return err
	}
	copy(dstOffsets, offsets)
	for i, v := range values {
		if len(v) == 0 {
			continue
		}
		p.Pin(&v[0])
		dst[i] = c_qdb_blob_t{Content: uintptr(unsafe.Pointer(&v[0])), ContentLength: uintptr(len(v))}
	}
	return nil
}

func copyStrings(p *refPinner, dstOffsets []int64, dst []c_qdb_string_t, offsets []int64, values []string) error {
	if err := checkColumnInput(dstOffsets, offsets, len(values)); err != nil {
		return err
	}
	copy(dstOffsets, offsets)
	for i, v := range values {
		if v == "" {
			continue
		}
		data := unsafe.StringData(v)
		p.Pin(data)
		dst[i] = c_qdb_string_t{Data: uintptr(unsafe.Pointer(data)), Length: uintptr(len(v))}
	}
	return nil
}

// refPinner keeps the Go memory referenced by blob and string columns
// pinned until the table is pushed or its column memory dropped.
type refPinner struct {
	p runtime.Pinner
	n int
}

func (r *refPinner) Pin(ptr any) {
	r.p.Pin(ptr)
	r.n++
}

func (r *refPinner) Unpin() {
	r.p.Unpin()
	r.n = 0
}

// Len is the number of values pinned since the last Unpin.
func (r *refPinner) Len() int { return r.n }

// Null element of each pinned buffer type.
var (
	pinnedDoubleNull    = math.Float64frombits(canonicalNaNBits)
	pinnedInt64Null     = Int64Null
	pinnedTimestampNull = NullTimespec
	pinnedBlobNull      = c_qdb_blob_t{}
	pinnedStringNull    = c_qdb_string_t{}
)
