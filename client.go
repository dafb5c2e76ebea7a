package qdb

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// DefaultTimeout is applied when no timeout option is given.
const DefaultTimeout = 60 * time.Second

// Handle is a connection to a quasardb cluster. Its methods may be called
// from several goroutines; Close waits for calls in flight.
type Handle struct {
	mu     sync.RWMutex
	raw    QdbHandle
	closed bool

	uri     string
	timeout time.Duration
	log     *zap.Logger
}

// Security holds the credentials of a secured cluster.
type Security struct {
	ClusterPublicKey string
	UserName         string
	UserPrivateKey   string
}

func (s Security) enabled() bool {
	return s.ClusterPublicKey != "" || s.UserName != ""
}

// Option configures Open.
type Option func(*handleOptions)

type handleOptions struct {
	timeout  time.Duration
	security Security
	logger   *zap.Logger
	library  LibraryConfig
}

// WithTimeout sets the client-side timeout of every native call.
func WithTimeout(d time.Duration) Option {
	return func(o *handleOptions) {
		o.timeout = d
	}
}

// WithSecurity enables a secured connection.
func WithSecurity(s Security) Option {
	return func(o *handleOptions) {
		o.security = s
	}
}

// WithLogger sets the logger of this handle. It does not change the
// package logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *handleOptions) {
		o.logger = l
	}
}

// WithLibrary controls where the native library is loaded from. Only the
// first load in the process honours it.
func WithLibrary(c LibraryConfig) Option {
	return func(o *handleOptions) {
		o.library = c
	}
}

// Open loads the native library if needed, then connects to uri
// (qdb://host:port).
func Open(uri string, opts ...Option) (*Handle, error) {
	o := handleOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if uri == "" {
		return nil, newLocalError(QDB_E_INVALID_ARGUMENT, "empty cluster uri")
	}
	if err := InitLibrary(o.library); err != nil {
		return nil, err
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}
	defer flushNativeLog()

	raw, err := qdb_open_tcp()
	if err != nil {
		return nil, err
	}
	h := &Handle{raw: raw, uri: uri, log: log.With(zap.String("uri", uri))}

	fail := func(err error) (*Handle, error) {
		_ = qdb_close(raw)
		return nil, err
	}
	if err := h.setTimeout(o.timeout); err != nil {
		return fail(err)
	}
	if o.security.enabled() {
		if err := qdb_option_set_cluster_public_key(raw, o.security.ClusterPublicKey); err != nil {
			return fail(fmt.Errorf("set cluster public key: %w", err))
		}
		if err := qdb_option_set_user_credentials(raw, o.security.UserName, o.security.UserPrivateKey); err != nil {
			return fail(fmt.Errorf("set user credentials: %w", err))
		}
	}
	if err := qdb_connect(raw, uri); err != nil {
		return fail(err)
	}
	h.log.Debug("connected", zap.Duration("timeout", o.timeout), zap.Bool("secure", o.security.enabled()))
	return h, nil
}

// Close disconnects and frees every native resource the handle still owns.
// Batch tables, local tables and native buffers created from the handle
// must not be used afterwards. Closing twice is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	err := qdb_close(h.raw)
	h.raw = nil
	flushNativeLog()
	h.log.Debug("closed")
	return err
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *Handle) URI() string { return h.uri }

// call is the scope of one entry point: the handle stays open and every
// guard acquired through f is released on exit.
type call struct {
	h  QdbHandle
	f  *frame
	rw *sync.RWMutex
}

func (h *Handle) enter() (*call, error) {
	h.mu.RLock()
	if h.closed || h.raw == nil {
		h.mu.RUnlock()
		return nil, ErrHandleClosed
	}
	return &call{h: h.raw, f: newFrame(), rw: &h.mu}, nil
}

// enterAlias is enter for calls naming an entry.
func (h *Handle) enterAlias(aliases ...string) (*call, error) {
	for _, a := range aliases {
		if a == "" {
			return nil, ErrEmptyAlias
		}
	}
	return h.enter()
}

func (c *call) exit() {
	c.f.close()
	c.rw.RUnlock()
	flushNativeLog()
}

func (h *Handle) setTimeout(d time.Duration) error {
	ms := d.Milliseconds()
	if ms <= 0 || ms > int64(^uint32(0)>>1) {
		return newLocalError(QDB_E_INVALID_ARGUMENT, fmt.Sprintf("timeout %v out of range", d))
	}
	if err := qdb_option_set_timeout(h.raw, int32(ms)); err != nil {
		return err
	}
	h.timeout = d
	return nil
}

// SetTimeout changes the client-side timeout of native calls.
func (h *Handle) SetTimeout(d time.Duration) error {
	c, err := h.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	return h.setTimeout(d)
}

func (h *Handle) Timeout() time.Duration { return h.timeout }

// PurgeAll removes every entry of the cluster. It needs the purge
// permission and is meant for tests.
func (h *Handle) PurgeAll(timeout time.Duration) error {
	c, err := h.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	h.log.Warn("purging cluster")
	return qdb_purge_all(c.h, int32(timeout.Milliseconds()))
}

// TrimAll trims the history of every entry.
func (h *Handle) TrimAll(timeout time.Duration) error {
	c, err := h.enter()
	if err != nil {
		return err
	}
	defer c.exit()
	return qdb_trim_all(c.h, int32(timeout.Milliseconds()))
}

// Remove deletes an entry of any type.
func (h *Handle) Remove(alias string) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	return qdb_remove(c.h, alias)
}

// EntryType reports the type of an existing entry.
func (h *Handle) EntryType(alias string) (EntryType, error) {
	c, err := h.enterAlias(alias)
	if err != nil {
		return EntryUninitialized, err
	}
	defer c.exit()
	return qdb_get_type(c.h, alias)
}

// ExpiresAt sets the absolute expiry of an entry. The zero time clears it.
func (h *Handle) ExpiresAt(alias string, t time.Time) error {
	c, err := h.enterAlias(alias)
	if err != nil {
		return err
	}
	defer c.exit()
	return qdb_expires_at(c.h, alias, expiryMillis(t))
}

// qdb_time_t expiry: 0 never expires
func expiryMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// LoadSecurity reads the cluster public key file and the user credentials
// file, a JSON document {"username": ..., "secret_key": ...}.
func LoadSecurity(clusterPublicKeyFile, userCredentialsFile string) (Security, error) {
	var s Security
	key, err := os.ReadFile(clusterPublicKeyFile)
	if err != nil {
		return s, fmt.Errorf("read cluster public key: %w", err)
	}
	s.ClusterPublicKey = string(trimSpace(key))

	raw, err := os.ReadFile(userCredentialsFile)
	if err != nil {
		return s, fmt.Errorf("read user credentials: %w", err)
	}
	var creds struct {
		UserName  string `json:"username"`
		SecretKey string `json:"secret_key"`
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return s, fmt.Errorf("parse user credentials: %w", err)
	}
	if creds.UserName == "" || creds.SecretKey == "" {
		return s, errors.New("user credentials: username and secret_key are required")
	}
	s.UserName, s.UserPrivateKey = creds.UserName, creds.SecretKey
	return s, nil
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}

// --------------------------- native buffers ---------------------------

// NativeBuffer owns memory allocated by the native library. Bytes is a view
// of that memory, valid until Close. A buffer that is never closed is
// released when it becomes unreachable, as long as its handle is open.
type NativeBuffer struct {
	mu      sync.Mutex
	owner   *Handle
	ptr     unsafe.Pointer
	n       int
	cleanup runtime.Cleanup
}

type nativeBufferState struct {
	owner *Handle
	ptr   unsafe.Pointer
}

// newNativeBuffer takes over a disowned native pointer.
func newNativeBuffer(owner *Handle, ptr unsafe.Pointer, n int) *NativeBuffer {
	b := &NativeBuffer{owner: owner, ptr: ptr, n: n}
	if ptr != nil {
		b.cleanup = runtime.AddCleanup(b, func(s nativeBufferState) {
			s.owner.releaseNative(s.ptr)
		}, nativeBufferState{owner: owner, ptr: ptr})
	}
	return b
}

func (h *Handle) releaseNative(ptr unsafe.Pointer) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		// qdb_close already freed it
		return
	}
	qdb_release(h.raw, ptr)
}

// Bytes is a view over native memory. Copy it to keep it past Close.
func (b *NativeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(b.ptr), b.n)
}

func (b *NativeBuffer) Len() int { return b.n }

// Close releases the native memory. Later calls return ErrBufferReleased.
func (b *NativeBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ptr == nil {
		if b.n == 0 {
			return nil
		}
		return ErrBufferReleased
	}
	b.cleanup.Stop()
	b.owner.releaseNative(b.ptr)
	b.ptr = nil
	return nil
}

// AllocBuffer allocates n bytes with the native allocator.
func (h *Handle) AllocBuffer(n int) (*NativeBuffer, error) {
	c, err := h.enter()
	if err != nil {
		return nil, err
	}
	defer c.exit()
	ptr, err := qdb_alloc_buffer(c.h, n)
	if err != nil {
		return nil, err
	}
	return newNativeBuffer(h, ptr, n), nil
}

// Version and Build describe the loaded native library.
func Version() (string, error) {
	if err := ensureLibrary(); err != nil {
		return "", err
	}
	return qdb_version(), nil
}

func Build() (string, error) {
	if err := ensureLibrary(); err != nil {
		return "", err
	}
	return qdb_build(), nil
}
