package qdb

import (
	"fmt"
	"time"
)

// PerfLabel is qdb_perf_label_t, one step of a server-side request.
type PerfLabel int32

var perfLabelNames = []string{
	"undefined",
	"accepted",
	"received",
	"secured",
	"deserialization_starts",
	"deserialization_ends",
	"entering_chord",
	"processing_starts",
	"dispatch",
	"serialization_starts",
	"serialization_ends",
	"processing_ends",
	"replying",
	"replied",
	"entry_writing_starts",
	"entry_writing_ends",
	"content_reading_starts",
	"content_reading_ends",
	"content_writing_starts",
	"content_writing_ends",
	"directory_reading_starts",
	"directory_reading_ends",
	"directory_writing_starts",
	"directory_writing_ends",
	"entry_trimming_starts",
	"entry_trimming_ends",
	"ts_evaluating_starts",
	"ts_evaluating_ends",
	"ts_bucket_updating_starts",
	"ts_bucket_updating_ends",
	"affix_search_starts",
	"affix_search_ends",
	"eviction_starts",
	"eviction_ends",
	"time_vector_tracker_reading_starts",
	"time_vector_tracker_reading_ends",
	"bucket_reading_starts",
	"bucket_reading_ends",
	"entries_directory_reading_starts",
	"entries_directory_reading_ends",
	"acl_reading_starts",
	"acl_reading_ends",
	"time_vector_reading_starts",
	"time_vector_reading_ends",
}

func (l PerfLabel) String() string {
	if l >= 0 && int(l) < len(perfLabelNames) {
		return perfLabelNames[l]
	}
	return fmt.Sprintf("unknown(%d)", int32(l))
}

// PerfMeasurement is the time elapsed since the request started when the
// labelled step was reached.
type PerfMeasurement struct {
	Label   PerfLabel
	Elapsed int64 // nanoseconds
}

func (m PerfMeasurement) Duration() time.Duration { return time.Duration(m.Elapsed) }

type PerfProfile struct {
	Name         string
	Measurements []PerfMeasurement
}

// Total is the elapsed time of the last measurement.
func (p PerfProfile) Total() time.Duration {
	if len(p.Measurements) == 0 {
		return 0
	}
	return p.Measurements[len(p.Measurements)-1].Duration()
}

// EnablePerf starts recording server-side profiles of this handle's
// requests.
func (h *Handle) EnablePerf() error {
	c, err := h.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	return qdb_perf_call(c.h, c_qdb_perf_enable_client_tracking)
}

// DisablePerf clears what was recorded and stops recording.
func (h *Handle) DisablePerf() error {
	c, err := h.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	if err := qdb_perf_call(c.h, c_qdb_perf_clear_all_profiles); err != nil {
		return err
	}
	return qdb_perf_call(c.h, c_qdb_perf_disable_client_tracking)
}

func (h *Handle) ClearPerf() error {
	c, err := h.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	return qdb_perf_call(c.h, c_qdb_perf_clear_all_profiles)
}

// PerfProfiles returns a copy of every profile recorded so far.
func (h *Handle) PerfProfiles() ([]PerfProfile, error) {
	c, err := h.enter()
	if err != nil {
		return nil, err
	}
	defer c.exit()
	return qdb_perf_get_profiles(c.h)
}
