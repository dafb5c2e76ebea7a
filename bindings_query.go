package qdb

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

type c_qdb_point_result_t struct {
	Type    int32 // qdb_query_result_value_type_t
	_       [4]byte
	Payload c_payload
}

type c_qdb_query_result_t struct {
	ColumnNames       uintptr // qdb_string_t*
	ColumnCount       uintptr
	Rows              uintptr // qdb_point_result_t**
	RowCount          uintptr
	ScannedPointCount uintptr
	ErrorMessage      c_qdb_string_t
}

type c_qdb_perf_measurement_t struct {
	Label   int32 // qdb_perf_label_t
	_       [4]byte
	Elapsed int64 // nanoseconds
}

type c_qdb_perf_profile_t struct {
	Name         c_qdb_string_t
	Measurements uintptr // qdb_perf_measurement_t*
	Count        uintptr
}

type c_node_document_fn func(
	handle unsafe.Pointer,
	uri string,
	content unsafe.Pointer, // const char**
	contentLength unsafe.Pointer, // qdb_size_t*
) qdb_error_t

type c_handle_fn func(
	handle unsafe.Pointer,
) qdb_error_t

var (
	c_qdb_query func(
		handle unsafe.Pointer,
		query string,
		result unsafe.Pointer, // qdb_query_result_t**
	) qdb_error_t

	c_qdb_node_status   c_node_document_fn
	c_qdb_node_config   c_node_document_fn
	c_qdb_node_topology c_node_document_fn

	c_qdb_node_stop func(
		handle unsafe.Pointer,
		uri string,
		reason string,
	) qdb_error_t

	c_qdb_perf_enable_client_tracking  c_handle_fn
	c_qdb_perf_disable_client_tracking c_handle_fn
	c_qdb_perf_clear_all_profiles      c_handle_fn

	c_qdb_perf_get_profiles func(
		handle unsafe.Pointer,
		profiles unsafe.Pointer, // qdb_perf_profile_t**
		count unsafe.Pointer, // qdb_size_t*
	) qdb_error_t
)

func register_qdb_query(handle uintptr) {
	purego.RegisterLibFunc(&c_qdb_query, handle, "qdb_query")
	purego.RegisterLibFunc(&c_qdb_node_status, handle, "qdb_node_status")
	purego.RegisterLibFunc(&c_qdb_node_config, handle, "qdb_node_config")
	purego.RegisterLibFunc(&c_qdb_node_topology, handle, "qdb_node_topology")
	purego.RegisterLibFunc(&c_qdb_node_stop, handle, "qdb_node_stop")
	purego.RegisterLibFunc(&c_qdb_perf_enable_client_tracking, handle, "qdb_perf_enable_client_tracking")
	purego.RegisterLibFunc(&c_qdb_perf_disable_client_tracking, handle, "qdb_perf_disable_client_tracking")
	purego.RegisterLibFunc(&c_qdb_perf_clear_all_profiles, handle, "qdb_perf_clear_all_profiles")
	purego.RegisterLibFunc(&c_qdb_perf_get_profiles, handle, "qdb_perf_get_profiles")
}

// Go wrappers over imported C bindings

/** Run a query. The caller owns the returned result and must release it. */
func qdb_query(h QdbHandle, q string) (*nativeResource, error) {
	var result unsafe.Pointer
	if _, err := check(h, ErrorCode(c_qdb_query(unsafe.Pointer(h), q, unsafe.Pointer(&result)))); err != nil {
		// a failed query may still carry a result with the error message
		ownNative(h, result).Release()
		return nil, err
	}
	if result == nil {
		return nil, newLocalError(QDB_E_INVALID_REPLY, "query returned no result")
	}
	return ownNative(h, result), nil
}

/** Fetch a JSON document from a node; the native copy is released before return */
func qdb_node_document(h QdbHandle, fn c_node_document_fn, uri string) ([]byte, error) {
	var content unsafe.Pointer
	var n uintptr
	if _, err := check(h, ErrorCode(fn(unsafe.Pointer(h), uri, unsafe.Pointer(&content), unsafe.Pointer(&n)))); err != nil {
		return nil, err
	}
	res := ownNative(h, content)
	defer res.Release()
	return copyNativeBytes(uintptr(res.Ptr()), int(n)), nil
}

func qdb_node_stop(h QdbHandle, uri, reason string) error {
	_, err := check(h, ErrorCode(c_qdb_node_stop(unsafe.Pointer(h), uri, reason)))
	return err
}

func qdb_perf_call(h QdbHandle, fn c_handle_fn) error {
	_, err := check(h, ErrorCode(fn(unsafe.Pointer(h))))
	return err
}

func qdb_perf_get_profiles(h QdbHandle) ([]PerfProfile, error) {
	var ptr unsafe.Pointer
	var n uintptr
	if _, err := check(h, ErrorCode(c_qdb_perf_get_profiles(unsafe.Pointer(h), unsafe.Pointer(&ptr), unsafe.Pointer(&n)))); err != nil {
		return nil, err
	}
	res := ownNative(h, ptr)
	defer res.Release()

	profiles := nativePoints[c_qdb_perf_profile_t](res.Ptr(), int(n))
	out := make([]PerfProfile, len(profiles))
	for i, p := range profiles {
		ms := nativePoints[c_qdb_perf_measurement_t](unsafe.Pointer(p.Measurements), int(p.Count))
		out[i] = PerfProfile{Name: p.Name.String(), Measurements: make([]PerfMeasurement, len(ms))}
		for j, m := range ms {
			out[i].Measurements[j] = PerfMeasurement{Label: PerfLabel(m.Label), Elapsed: m.Elapsed}
		}
	}
	return out, nil
}
