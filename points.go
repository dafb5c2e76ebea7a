package qdb

import (
	"math"
	"unsafe"
)

// PointValue lists the payload types a time series column can hold.
// Symbol columns read and write as string.
type PointValue interface {
	float64 | int64 | Timespec | []byte | string
}

// Points is a struct-of-arrays column batch. Timestamps and Values always
// have the same length once they cross into or out of native code.
type Points[T PointValue] struct {
	Timestamps []Timespec
	Values     []T
}

// NewPoints fails with ErrLengthMismatch when the slices differ in length.
func NewPoints[T PointValue](ts []Timespec, vs []T) (Points[T], error) {
	if len(ts) != len(vs) {
		return Points[T]{}, ErrLengthMismatch
	}
	return Points[T]{Timestamps: ts, Values: vs}, nil
}

func (p Points[T]) Len() int { return len(p.Timestamps) }

// At returns the i-th point.
func (p Points[T]) At(i int) (Timespec, T) { return p.Timestamps[i], p.Values[i] }

// Cells converts the payloads to Values, mapping null sentinels to Null.
func (p Points[T]) Cells() []Value {
	out := make([]Value, len(p.Values))
	switch vs := any(p.Values).(type) {
	case []float64:
		for i, v := range vs {
			if math.IsNaN(v) {
				continue
			}
			out[i] = DoubleValue(v)
		}
	case []int64:
		for i, v := range vs {
			if v == Int64Null {
				continue
			}
			out[i] = Int64Value(v)
		}
	case []Timespec:
		for i, v := range vs {
			if v.IsNull() {
				continue
			}
			out[i] = TimestampValue(v)
		}
	case [][]byte:
		for i, v := range vs {
			if len(v) == 0 {
				continue
			}
			out[i] = BlobValue(v)
		}
	case []string:
		for i, v := range vs {
			if v == "" {
				continue
			}
			out[i] = StringValue(v)
		}
	}
	return out
}

// zip builds the native array-of-structs form of a column batch.
func zip[T any, P any](f *frame, ts []Timespec, vs []T, mk func(Timespec, T) (P, error)) ([]P, error) {
	if len(ts) != len(vs) {
		return nil, ErrLengthMismatch
	}
	out, err := makeSlice[P](f, len(ts))
	if err != nil {
		return nil, err
	}
	for i := range ts {
		if out[i], err = mk(ts[i], vs[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// unzip is the inverse of zip. Blob and string payloads are copied.
func unzip[P any, T PointValue](ps []P, split func(P) (Timespec, T)) Points[T] {
	out := Points[T]{
		Timestamps: make([]Timespec, len(ps)),
		Values:     make([]T, len(ps)),
	}
	for i, p := range ps {
		out.Timestamps[i], out.Values[i] = split(p)
	}
	return out
}

type c_qdb_ts_double_point struct {
	Timestamp c_qdb_timespec_t
	Value     float64
}

type c_qdb_ts_int64_point struct {
	Timestamp c_qdb_timespec_t
	Value     int64
}

type c_qdb_ts_timestamp_point struct {
	Timestamp c_qdb_timespec_t
	Value     c_qdb_timespec_t
}

type c_qdb_ts_blob_point struct {
	Timestamp     c_qdb_timespec_t
	Content       uintptr // const void*
	ContentLength uintptr
}

type c_qdb_ts_string_point struct {
	Timestamp     c_qdb_timespec_t
	Content       uintptr // const char*
	ContentLength uintptr
}

func mkDoublePoint(ts Timespec, v float64) (c_qdb_ts_double_point, error) {
	return c_qdb_ts_double_point{Timestamp: ts.native(), Value: normalizeDouble(v)}, nil
}

func splitDoublePoint(p c_qdb_ts_double_point) (Timespec, float64) {
	return Timespec(p.Timestamp), p.Value
}

func mkInt64Point(ts Timespec, v int64) (c_qdb_ts_int64_point, error) {
	return c_qdb_ts_int64_point{Timestamp: ts.native(), Value: v}, nil
}

func splitInt64Point(p c_qdb_ts_int64_point) (Timespec, int64) {
	return Timespec(p.Timestamp), p.Value
}

func mkTimestampPoint(ts Timespec, v Timespec) (c_qdb_ts_timestamp_point, error) {
	return c_qdb_ts_timestamp_point{Timestamp: ts.native(), Value: v.native()}, nil
}

func splitTimestampPoint(p c_qdb_ts_timestamp_point) (Timespec, Timespec) {
	return Timespec(p.Timestamp), Timespec(p.Value)
}

// blobPointMaker pins each payload in f so the array can reference it.
func blobPointMaker(f *frame) func(Timespec, []byte) (c_qdb_ts_blob_point, error) {
	return func(ts Timespec, v []byte) (c_qdb_ts_blob_point, error) {
		p := c_qdb_ts_blob_point{Timestamp: ts.native()}
		if len(v) == 0 {
			return p, nil
		}
		if err := f.pin(&v[0]); err != nil {
			return p, err
		}
		bv := borrowBytes(v)
		p.Content, p.ContentLength = uintptr(bv.Ptr), uintptr(bv.Len)
		return p, nil
	}
}

func splitBlobPoint(p c_qdb_ts_blob_point) (Timespec, []byte) {
	return Timespec(p.Timestamp), copyNativeBytes(p.Content, int(p.ContentLength))
}

func stringPointMaker(f *frame) func(Timespec, string) (c_qdb_ts_string_point, error) {
	return func(ts Timespec, v string) (c_qdb_ts_string_point, error) {
		p := c_qdb_ts_string_point{Timestamp: ts.native()}
		if v == "" {
			return p, nil
		}
		if err := f.pin(unsafe.StringData(v)); err != nil {
			return p, err
		}
		bv := borrowStringBytes(v)
		p.Content, p.ContentLength = uintptr(bv.Ptr), uintptr(bv.Len)
		return p, nil
	}
}

func splitStringPoint(p c_qdb_ts_string_point) (Timespec, string) {
	return Timespec(p.Timestamp), copyNativeString(p.Content, int(p.ContentLength))
}

// nativePoints views n native points of type P starting at ptr.
func nativePoints[P any](ptr unsafe.Pointer, n int) []P {
	if ptr == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*P)(ptr), n)
}
