package qdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerfLabel(t *testing.T) {
	assert.Equal(t, "accepted", PerfLabel(1).String())
	assert.Equal(t, "time_vector_reading_ends", PerfLabel(len(perfLabelNames)-1).String())
	assert.Equal(t, "unknown(-3)", PerfLabel(-3).String())
	assert.Equal(t, "unknown(500)", PerfLabel(500).String())
}

func TestPerfProfileTotal(t *testing.T) {
	assert.Zero(t, PerfProfile{Name: "empty"}.Total())
	p := PerfProfile{Measurements: []PerfMeasurement{{Label: 1, Elapsed: 10}, {Label: 13, Elapsed: 2500}}}
	assert.Equal(t, 2500*time.Nanosecond, p.Total())
}

func TestPerfProfiles(t *testing.T) {
	h, f := openFake(t)

	_, err := h.PerfProfiles()
	assert.ErrorIs(t, err, ErrOperationDisabled)

	require.NoError(t, h.EnablePerf())
	profiles, err := h.PerfProfiles()
	require.NoError(t, err)
	assert.Empty(t, profiles)

	want := []PerfProfile{
		{Name: "blob.put", Measurements: []PerfMeasurement{{Label: 1, Elapsed: 0}, {Label: 13, Elapsed: 1200}}},
		{Name: "ts.batch_push", Measurements: []PerfMeasurement{{Label: 2, Elapsed: 50}}},
	}
	f.profiles = want
	profiles, err = h.PerfProfiles()
	require.NoError(t, err)
	assert.Equal(t, want, profiles)
	assert.Zero(t, f.live())

	require.NoError(t, h.ClearPerf())
	profiles, err = h.PerfProfiles()
	require.NoError(t, err)
	assert.Empty(t, profiles)

	f.profiles = want
	require.NoError(t, h.DisablePerf())
	assert.Nil(t, f.profiles)
	_, err = h.PerfProfiles()
	assert.ErrorIs(t, err, ErrOperationDisabled)
}
