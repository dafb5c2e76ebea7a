package qdb

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allColumnTypes = []ColumnType{ColumnDouble, ColumnBlob, ColumnInt64, ColumnTimestamp, ColumnString, ColumnSymbol}

func TestNullPayloads(t *testing.T) {
	for _, ct := range allColumnTypes {
		t.Run(ct.String(), func(t *testing.T) {
			p, err := nullPayload(ct)
			require.NoError(t, err)

			null, err := payloadIsNull(ct, p)
			require.NoError(t, err)
			assert.True(t, null)

			v, err := valueFromNative(ct, p)
			require.NoError(t, err)
			assert.True(t, v.IsNull())
		})
	}

	assert.Equal(t, c_payload{canonicalNaNBits, 0}, mustPayload(t, NullValue(), ColumnDouble))
	assert.Equal(t, c_payload{uint64(1) << 63, uint64(1) << 63}, mustPayload(t, NullValue(), ColumnTimestamp))

	_, err := nullPayload(ColumnUninitialized)
	assert.ErrorIs(t, err, ErrIncompatibleType)
	_, err = payloadIsNull(ColumnType(42), c_payload{})
	assert.ErrorIs(t, err, ErrIncompatibleType)
}

func mustPayload(t *testing.T, v Value, ct ColumnType) c_payload {
	t.Helper()
	f := newFrame()
	defer f.close()
	p, err := v.toNative(ct, f)
	require.NoError(t, err)
	return p
}

func TestNaNIsCanonicalised(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("every NaN payload is written as the canonical null", prop.ForAll(
		func(mantissa uint64, negative bool) bool {
			bits := uint64(0x7FF0000000000000) | (mantissa & 0x000FFFFFFFFFFFFF) | 1
			if negative {
				bits |= 1 << 63
			}
			nan := math.Float64frombits(bits)
			if !math.IsNaN(nan) {
				return false
			}
			f := newFrame()
			defer f.close()
			p, err := DoubleValue(nan).toNative(ColumnDouble, f)
			return err == nil && p[0] == canonicalNaNBits && math.Float64bits(normalizeDouble(nan)) == canonicalNaNBits
		},
		gen.UInt64(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestPayloadRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	roundTrip := func(v Value, ct ColumnType) bool {
		f := newFrame()
		defer f.close()
		p, err := v.toNative(ct, f)
		if err != nil {
			return false
		}
		back, err := valueFromNative(ct, p)
		return err == nil && back.Equal(v)
	}

	properties.Property("int64", prop.ForAll(
		func(v int64) bool { return roundTrip(Int64Value(v), ColumnInt64) },
		gen.Int64Range(math.MinInt64+1, math.MaxInt64),
	))
	properties.Property("double", prop.ForAll(
		func(v float64) bool { return roundTrip(DoubleValue(v), ColumnDouble) },
		gen.Float64(),
	))
	properties.Property("timestamp", prop.ForAll(
		func(sec, nsec int64) bool { return roundTrip(TimestampValue(Timespec{Sec: sec, Nsec: nsec}), ColumnTimestamp) },
		gen.Int64Range(-1<<40, 1<<40),
		gen.Int64Range(0, 999_999_999),
	))
	properties.Property("blob", prop.ForAll(
		func(s string) bool { return roundTrip(BlobValue([]byte(s)), ColumnBlob) },
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))
	properties.Property("string", prop.ForAll(
		func(s string) bool { return roundTrip(StringValue(s), ColumnString) },
		gen.AnyString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}

func TestValueFromNativeCopies(t *testing.T) {
	content := []byte("shared")
	p := c_payload{uint64(uintptr(borrowBytes(content).Ptr)), uint64(len(content))}

	v, err := valueFromNative(ColumnBlob, p)
	require.NoError(t, err)
	content[0] = 'X'

	b, ok := v.Blob()
	require.True(t, ok)
	assert.Equal(t, []byte("shared"), b)

	sym, err := valueFromNative(ColumnSymbol, p)
	require.NoError(t, err)
	assert.Equal(t, KindSymbol, sym.Kind())
	text, ok := sym.Text()
	require.True(t, ok)
	assert.Equal(t, "Xhared", text)
}

func TestToNativeRejectsMismatch(t *testing.T) {
	f := newFrame()
	defer f.close()

	_, err := Int64Value(1).toNative(ColumnDouble, f)
	assert.ErrorIs(t, err, ErrIncompatibleType)
	_, err = StringValue("x").toNative(ColumnBlob, f)
	assert.ErrorIs(t, err, ErrIncompatibleType)
	_, err = DoubleValue(1).toNative(ColumnUninitialized, f)
	assert.ErrorIs(t, err, ErrIncompatibleType)

	// symbols and strings share a representation
	p, err := SymbolValue("tick").toNative(ColumnString, f)
	require.NoError(t, err)
	assert.EqualValues(t, 4, p[1])

	p, err = BlobValue(nil).toNative(ColumnBlob, f)
	require.NoError(t, err)
	assert.Equal(t, c_payload{}, p)
}

func TestValueAccessors(t *testing.T) {
	ts := Timespec{Sec: 1_700_000_000, Nsec: 5}

	_, ok := Int64Value(3).Double()
	assert.False(t, ok)
	i, ok := Int64Value(3).Int64()
	assert.True(t, ok)
	assert.EqualValues(t, 3, i)
	got, ok := TimestampValue(ts).Timestamp()
	assert.True(t, ok)
	assert.Equal(t, ts, got)
	_, ok = BlobValue([]byte("b")).Text()
	assert.False(t, ok)

	assert.Equal(t, "null", NullValue().String())
	assert.Equal(t, "12", Int64Value(12).String())
	assert.Equal(t, "0x6869", BlobValue([]byte("hi")).String())
	assert.Equal(t, "2023-11-14T22:13:20.000000005Z", TimestampValue(ts).String())

	assert.Nil(t, NullValue().Interface())
	assert.Equal(t, 1.5, DoubleValue(1.5).Interface())
	assert.Equal(t, time.Unix(ts.Sec, ts.Nsec).UTC(), TimestampValue(ts).Interface())

	assert.True(t, StringValue("a").Equal(StringValue("a")))
	assert.False(t, StringValue("a").Equal(SymbolValue("a")))
	assert.False(t, DoubleValue(math.NaN()).Equal(DoubleValue(math.NaN())))
	assert.True(t, NullValue().Equal(Value{}))
}

func TestParseColumnType(t *testing.T) {
	for _, ct := range allColumnTypes {
		got, err := ParseColumnType(ct.String())
		require.NoError(t, err)
		assert.Equal(t, ct, got)
	}
	_, err := ParseColumnType("decimal")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "column_type(9)", ColumnType(9).String())
}

func TestResultColumnType(t *testing.T) {
	ct, ok, err := resultColumnType(ResultCount)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ColumnInt64, ct)

	_, ok, err = resultColumnType(ResultNone)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = resultColumnType(ResultType(17))
	assert.ErrorIs(t, err, ErrIncompatibleType)
}
