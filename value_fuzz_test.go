package qdb

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func FuzzPayloadRoundTrip(f *testing.F) {
	f.Add(int64(0), 0.0, int64(0), int64(0), []byte(nil), "")
	f.Add(Int64Null, math.NaN(), MinTime, MinTime, []byte{0}, "ACME")
	f.Add(int64(42), -1.5, int64(1_700_000_000), int64(999_999_999), []byte("payload"), "nyse\x00lse")
	f.Add(int64(math.MaxInt64), math.Inf(1), MinTime, int64(0), []byte{0xff, 0xfe}, "\xff")

	f.Fuzz(func(t *testing.T, i int64, d float64, sec, nsec int64, blob []byte, s string) {
		check := func(v Value, ct ColumnType, null bool) {
			t.Helper()
			fr := newFrame()
			defer fr.close()
			p, err := v.toNative(ct, fr)
			require.NoError(t, err)
			isNull, err := payloadIsNull(ct, p)
			require.NoError(t, err)
			require.Equal(t, null, isNull, "%v in %v column", v, ct)

			back, err := valueFromNative(ct, p)
			require.NoError(t, err)
			if null {
				require.True(t, back.IsNull(), "%v in %v column", v, ct)
				return
			}
			require.True(t, back.Equal(v), "%v came back as %v", v, back)
		}

		check(Int64Value(i), ColumnInt64, i == Int64Null)
		check(DoubleValue(d), ColumnDouble, math.IsNaN(d))
		ts := Timespec{Sec: sec, Nsec: nsec}
		check(TimestampValue(ts), ColumnTimestamp, ts.IsNull())
		check(BlobValue(blob), ColumnBlob, len(blob) == 0)
		check(StringValue(s), ColumnString, s == "")
		check(SymbolValue(s), ColumnSymbol, s == "")
	})
}

func FuzzCopyTimestamps(f *testing.F) {
	f.Add(int64(1), int64(0), int64(5), int64(0))
	f.Add(MinTime, MinTime, int64(0), int64(0))
	f.Add(MinTime, int64(7), int64(-3), MinTime)

	f.Fuzz(func(t *testing.T, sec0, nsec0, sec1, nsec1 int64) {
		secs := []int64{sec0, sec1, MinTime}
		nsecs := []int64{nsec0, nsec1, MinTime}
		offsets := []int64{0, 1, 2}

		dstOffsets := make([]int64, 3)
		dst := make([]Timespec, 3)
		prefill(dstOffsets, dst, pinnedTimestampNull)
		require.NoError(t, copyTimestamps(dstOffsets, dst, offsets, secs, nsecs))

		require.Equal(t, offsets, dstOffsets)
		for i := range secs {
			// a skipped row keeps the null written by prefill
			require.Equal(t, Timespec{Sec: secs[i], Nsec: nsecs[i]}, dst[i], "row %d", i)
		}
		require.True(t, dst[2].IsNull())

		err := copyTimestamps(dstOffsets, dst, offsets, secs, nsecs[:2])
		require.ErrorIs(t, err, ErrLengthMismatch)
	})
}
