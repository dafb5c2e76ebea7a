package qdb

import (
	"bytes"
	"fmt"
	"math"
	"unsafe"
)

// ColumnType is qdb_ts_column_type_t.
type ColumnType int32

const (
	ColumnUninitialized ColumnType = -1
	ColumnDouble        ColumnType = 0
	ColumnBlob          ColumnType = 1
	ColumnInt64         ColumnType = 2
	ColumnTimestamp     ColumnType = 3
	ColumnString        ColumnType = 4
	ColumnSymbol        ColumnType = 5
)

func (t ColumnType) String() string {
	switch t {
	case ColumnUninitialized:
		return "uninitialized"
	case ColumnDouble:
		return "double"
	case ColumnBlob:
		return "blob"
	case ColumnInt64:
		return "int64"
	case ColumnTimestamp:
		return "timestamp"
	case ColumnString:
		return "string"
	case ColumnSymbol:
		return "symbol"
	}
	return fmt.Sprintf("column_type(%d)", int32(t))
}

// ParseColumnType is the inverse of ColumnType.String.
func ParseColumnType(s string) (ColumnType, error) {
	for t := ColumnDouble; t <= ColumnSymbol; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return ColumnUninitialized, newLocalError(QDB_E_INVALID_ARGUMENT, fmt.Sprintf("unknown column type %q", s))
}

// ResultType is the per-point type tag of a query result.
type ResultType int32

const (
	ResultNone      ResultType = -1
	ResultDouble    ResultType = 0
	ResultBlob      ResultType = 1
	ResultInt64     ResultType = 2
	ResultTimestamp ResultType = 3
	ResultCount     ResultType = 4
	ResultString    ResultType = 5
)

func (t ResultType) String() string {
	switch t {
	case ResultNone:
		return "none"
	case ResultDouble:
		return "double"
	case ResultBlob:
		return "blob"
	case ResultInt64:
		return "int64"
	case ResultTimestamp:
		return "timestamp"
	case ResultCount:
		return "count"
	case ResultString:
		return "string"
	}
	return fmt.Sprintf("result_type(%d)", int32(t))
}

// Null sentinels of the native representation.
const (
	Int64Null        int64  = math.MinInt64
	int64NullBits    uint64 = 0x8000000000000000
	canonicalNaNBits uint64 = 0x7FF8000000000000
)

// DoubleNull is the canonical quiet NaN written for null doubles.
func DoubleNull() float64 { return math.Float64frombits(canonicalNaNBits) }

// normalizeDouble collapses every NaN payload onto the canonical one.
func normalizeDouble(v float64) float64 {
	if math.IsNaN(v) {
		return DoubleNull()
	}
	return v
}

// ValueKind is the active variant of a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInt64
	KindDouble
	KindTimestamp
	KindBlob
	KindString
	KindSymbol
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindTimestamp:
		return "timestamp"
	case KindBlob:
		return "blob"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is one cell of a time series or query result. Exactly one payload
// is meaningful, selected by Kind; the zero Value is Null.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	ts   Timespec
	b    []byte
	s    string
}

func NullValue() Value { return Value{} }

func Int64Value(v int64) Value { return Value{kind: KindInt64, i: v} }

func DoubleValue(v float64) Value { return Value{kind: KindDouble, f: v} }

func TimestampValue(v Timespec) Value { return Value{kind: KindTimestamp, ts: v} }

// BlobValue keeps v by reference.
func BlobValue(v []byte) Value { return Value{kind: KindBlob, b: v} }

func StringValue(v string) Value { return Value{kind: KindString, s: v} }

func SymbolValue(v string) Value { return Value{kind: KindSymbol, s: v} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// The typed accessors report false when v holds another kind.

func (v Value) Int64() (int64, bool) { return v.i, v.kind == KindInt64 }

func (v Value) Double() (float64, bool) { return v.f, v.kind == KindDouble }

func (v Value) Timestamp() (Timespec, bool) { return v.ts, v.kind == KindTimestamp }

func (v Value) Blob() ([]byte, bool) { return v.b, v.kind == KindBlob }

// Text returns the payload of a String or Symbol value.
func (v Value) Text() (string, bool) {
	return v.s, v.kind == KindString || v.kind == KindSymbol
}

// Equal compares kind and payload. Doubles compare by value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt64:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f
	case KindTimestamp:
		return v.ts == o.ts
	case KindBlob:
		return bytes.Equal(v.b, o.b)
	case KindString, KindSymbol:
		return v.s == o.s
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt64:
		return fmt.Sprintf("%d", v.i)
	case KindDouble:
		return fmt.Sprintf("%g", v.f)
	case KindTimestamp:
		return v.ts.Time().Format("2006-01-02T15:04:05.999999999Z")
	case KindBlob:
		return fmt.Sprintf("0x%x", v.b)
	case KindString, KindSymbol:
		return v.s
	}
	return "?"
}

// Interface returns the payload as a plain Go value, nil for Null.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt64:
		return v.i
	case KindDouble:
		return v.f
	case KindTimestamp:
		return v.ts.Time()
	case KindBlob:
		return v.b
	case KindString, KindSymbol:
		return v.s
	}
	return nil
}

// c_payload is the 16-byte value union shared by point results and row
// getters: one int64/double, one timespec, or a (pointer, length) pair.
type c_payload [2]uint64

func nullPayload(t ColumnType) (c_payload, error) {
	switch t {
	case ColumnDouble:
		return c_payload{canonicalNaNBits, 0}, nil
	case ColumnInt64:
		return c_payload{int64NullBits, 0}, nil
	case ColumnTimestamp:
		return c_payload{int64NullBits, int64NullBits}, nil
	case ColumnBlob, ColumnString, ColumnSymbol:
		return c_payload{0, 0}, nil
	}
	return c_payload{}, incompatibleType("null payload", t)
}

// payloadIsNull must be consulted before a payload is interpreted.
func payloadIsNull(t ColumnType, p c_payload) (bool, error) {
	switch t {
	case ColumnDouble:
		return math.IsNaN(math.Float64frombits(p[0])), nil
	case ColumnInt64:
		return int64(p[0]) == Int64Null, nil
	case ColumnTimestamp:
		return Timespec{Sec: int64(p[0]), Nsec: int64(p[1])}.IsNull(), nil
	case ColumnBlob, ColumnString, ColumnSymbol:
		return p[1] == 0, nil
	}
	return false, incompatibleType("null check", t)
}

// valueFromNative converts a payload of column type t. Blob and string
// contents are copied, so the result outlives the native buffer.
func valueFromNative(t ColumnType, p c_payload) (Value, error) {
	null, err := payloadIsNull(t, p)
	if err != nil {
		return Value{}, err
	}
	if null {
		return NullValue(), nil
	}
	switch t {
	case ColumnDouble:
		return DoubleValue(math.Float64frombits(p[0])), nil
	case ColumnInt64:
		return Int64Value(int64(p[0])), nil
	case ColumnTimestamp:
		return TimestampValue(Timespec{Sec: int64(p[0]), Nsec: int64(p[1])}), nil
	case ColumnBlob:
		return BlobValue(copyNativeBytes(uintptr(p[0]), int(p[1]))), nil
	case ColumnString:
		return StringValue(copyNativeString(uintptr(p[0]), int(p[1]))), nil
	case ColumnSymbol:
		return SymbolValue(copyNativeString(uintptr(p[0]), int(p[1]))), nil
	}
	return Value{}, incompatibleType("from native", t)
}

// toNative converts v for a column of type t. Blob and string contents are
// passed by reference and pinned in f until it closes.
func (v Value) toNative(t ColumnType, f *frame) (c_payload, error) {
	if v.kind == KindNull {
		return nullPayload(t)
	}
	mismatch := newLocalError(QDB_E_INCOMPATIBLE_TYPE, fmt.Sprintf("cannot store %v value in %v column", v.kind, t))
	switch t {
	case ColumnDouble:
		if v.kind != KindDouble {
			return c_payload{}, mismatch
		}
		return c_payload{math.Float64bits(normalizeDouble(v.f)), 0}, nil
	case ColumnInt64:
		if v.kind != KindInt64 {
			return c_payload{}, mismatch
		}
		return c_payload{uint64(v.i), 0}, nil
	case ColumnTimestamp:
		if v.kind != KindTimestamp {
			return c_payload{}, mismatch
		}
		return c_payload{uint64(v.ts.Sec), uint64(v.ts.Nsec)}, nil
	case ColumnBlob:
		if v.kind != KindBlob {
			return c_payload{}, mismatch
		}
		if len(v.b) == 0 {
			return nullPayload(t)
		}
		if err := f.pin(&v.b[0]); err != nil {
			return c_payload{}, err
		}
		bv := borrowBytes(v.b)
		return c_payload{uint64(uintptr(bv.Ptr)), uint64(bv.Len)}, nil
	case ColumnString, ColumnSymbol:
		if v.kind != KindString && v.kind != KindSymbol {
			return c_payload{}, mismatch
		}
		if len(v.s) == 0 {
			return nullPayload(t)
		}
		if err := f.pin(unsafe.StringData(v.s)); err != nil {
			return c_payload{}, err
		}
		bv := borrowStringBytes(v.s)
		return c_payload{uint64(uintptr(bv.Ptr)), uint64(bv.Len)}, nil
	}
	return c_payload{}, incompatibleType("to native", t)
}

// resultColumnType maps a query result tag onto the column type used for
// decoding. ResultNone has no column type and decodes as Null.
func resultColumnType(t ResultType) (ColumnType, bool, error) {
	switch t {
	case ResultNone:
		return ColumnUninitialized, false, nil
	case ResultDouble:
		return ColumnDouble, true, nil
	case ResultBlob:
		return ColumnBlob, true, nil
	case ResultInt64, ResultCount:
		return ColumnInt64, true, nil
	case ResultTimestamp:
		return ColumnTimestamp, true, nil
	case ResultString:
		return ColumnString, true, nil
	}
	return ColumnUninitialized, false, incompatibleType("query result", t)
}
