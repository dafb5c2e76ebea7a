package qdb

import (
	"math"
	"time"
)

// MinTime is qdb_min_time, the component value of a null timestamp.
const MinTime int64 = math.MinInt64

// Timespec is a (seconds, nanoseconds) pair, laid out like qdb_timespec_t.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// NullTimespec is the native null timestamp.
var NullTimespec = Timespec{Sec: MinTime, Nsec: MinTime}

func NewTimespec(t time.Time) Timespec {
	return Timespec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

func (ts Timespec) Time() time.Time {
	return time.Unix(ts.Sec, ts.Nsec).UTC()
}

// IsNull holds only when both components are MinTime.
func (ts Timespec) IsNull() bool {
	return ts.Sec == MinTime && ts.Nsec == MinTime
}

func (ts Timespec) Add(d time.Duration) Timespec {
	return NewTimespec(ts.Time().Add(d))
}

func (ts Timespec) Before(other Timespec) bool {
	return ts.Sec < other.Sec || (ts.Sec == other.Sec && ts.Nsec < other.Nsec)
}

func (ts Timespec) native() c_qdb_timespec_t {
	return c_qdb_timespec_t(ts)
}

// SplitTimespecs converts to the parallel seconds/nanoseconds form.
func SplitTimespecs(ts []Timespec) (secs, nsecs []int64) {
	secs = make([]int64, len(ts))
	nsecs = make([]int64, len(ts))
	for i, t := range ts {
		secs[i], nsecs[i] = t.Sec, t.Nsec
	}
	return secs, nsecs
}

// JoinTimespecs is the inverse of SplitTimespecs.
func JoinTimespecs(secs, nsecs []int64) ([]Timespec, error) {
	if len(secs) != len(nsecs) {
		return nil, ErrLengthMismatch
	}
	out := make([]Timespec, len(secs))
	for i := range secs {
		out[i] = Timespec{Sec: secs[i], Nsec: nsecs[i]}
	}
	return out, nil
}

// TimeRange is the half-open interval [Begin, End).
type TimeRange struct {
	Begin Timespec
	End   Timespec
}

// Forever covers every representable timestamp.
var Forever = TimeRange{Begin: Timespec{}, End: Timespec{Sec: math.MaxInt64, Nsec: 999_999_999}}

func NewTimeRange(begin, end time.Time) TimeRange {
	return TimeRange{Begin: NewTimespec(begin), End: NewTimespec(end)}
}

func (r TimeRange) Contains(ts Timespec) bool {
	return !ts.Before(r.Begin) && ts.Before(r.End)
}

type c_qdb_ts_range_t struct {
	Begin c_qdb_timespec_t
	End   c_qdb_timespec_t
}

// FilterType selects the native filter applied to a range. Only the
// unfiltered mode is exposed.
type FilterType int32

const (
	FilterNone FilterType = 0
)

// FilteredRange is a range plus the filter applied to its points.
type FilteredRange struct {
	Range  TimeRange
	Filter FilterType
}

type c_qdb_ts_filter_t struct {
	Type   int32
	_      [4]byte
	Params [2]uint64 // union of sample size and double range
}

type c_qdb_ts_filtered_range_t struct {
	Range  c_qdb_ts_range_t
	Filter c_qdb_ts_filter_t
}

func (r TimeRange) native() c_qdb_ts_range_t {
	return c_qdb_ts_range_t{Begin: r.Begin.native(), End: r.End.native()}
}

func (r FilteredRange) native() c_qdb_ts_filtered_range_t {
	return c_qdb_ts_filtered_range_t{Range: r.Range.native(), Filter: c_qdb_ts_filter_t{Type: int32(r.Filter)}}
}

func filteredRangeFromNative(n c_qdb_ts_filtered_range_t) FilteredRange {
	return FilteredRange{
		Range:  TimeRange{Begin: Timespec(n.Range.Begin), End: Timespec(n.Range.End)},
		Filter: FilterType(n.Filter.Type),
	}
}

func rangesToNative(f *frame, ranges []TimeRange) ([]c_qdb_ts_range_t, error) {
	if len(ranges) == 0 {
		return nil, newLocalError(QDB_E_INVALID_ARGUMENT, "at least one time range is required")
	}
	out, err := makeSlice[c_qdb_ts_range_t](f, len(ranges))
	if err != nil {
		return nil, err
	}
	for i, r := range ranges {
		out[i] = r.native()
	}
	return out, nil
}
