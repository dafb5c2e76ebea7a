// Go bindings for the quasardb native client.
//
// The native library is loaded at runtime with purego, so building this
// package needs no C toolchain. The library is looked up, in order:
//
//   - LibraryConfig.Path, or the QDB_LIB_PATH environment variable
//   - a platform directory under LibraryConfig.Dir or QDB_LIB_DIR, laid out
//     as <dir>/<goos>[_musl]_<goarch>/<libname>
//   - the system loader search path (LD_LIBRARY_PATH, DYLD_LIBRARY_PATH, PATH)
//
// Symbols are resolved once per process via sync.Once; every later call
// observes the same outcome.
package qdb

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const libraryName = "qdb_api"

var ErrLibraryNotLoaded = errors.New("qdb: native library is not loaded")

// LibraryConfig controls where the native library is loaded from.
type LibraryConfig struct {
	// Path to the shared library file. Takes precedence over Dir.
	Path string `yaml:"path"`
	// Directory holding per-platform subdirectories.
	Dir string `yaml:"dir"`
}

var (
	libOnce   sync.Once
	libErr    error
	libHandle uintptr
)

// InitLibrary loads the native library and resolves its symbols. Only the
// first call does any work; its result is returned to every caller.
func InitLibrary(config LibraryConfig) error {
	libOnce.Do(func() {
		libHandle, libErr = loadLibrary(config)
		if libErr != nil {
			libErr = fmt.Errorf("%w: %v", ErrLibraryNotLoaded, libErr)
			return
		}
		if err := registerAll(libHandle); err != nil {
			libErr = fmt.Errorf("%w: %v", ErrLibraryNotLoaded, err)
			return
		}
		Logger().Debug("native library loaded", zap.String("version", qdb_version()))
	})
	return libErr
}

// With QDB_LIB_STRICT=1 a missing library fails at startup instead of at
// the first call.
func init() {
	if os.Getenv("QDB_LIB_STRICT") != "1" {
		return
	}
	if err := ensureLibrary(); err != nil {
		panic(err)
	}
}

func ensureLibrary() error {
	return InitLibrary(LibraryConfig{})
}

func registerAll(handle uintptr) (err error) {
	// RegisterLibFunc panics on a missing symbol
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolve symbols: %v", r)
		}
	}()
	register_qdb_client(handle)
	register_qdb_entry(handle)
	register_qdb_ts(handle)
	register_qdb_batch(handle)
	register_qdb_query(handle)
	return nil
}

func loadLibrary(config LibraryConfig) (uintptr, error) {
	var tried []string
	for _, candidate := range libraryCandidates(config) {
		handle, err := openLibrary(candidate)
		if err == nil {
			return handle, nil
		}
		tried = append(tried, fmt.Sprintf("%s (%v)", candidate, err))
	}
	return 0, fmt.Errorf("no loadable %s library, tried: %s", libraryName, strings.Join(tried, "; "))
}

func libraryCandidates(config LibraryConfig) []string {
	var out []string
	if p := firstNonEmpty(config.Path, os.Getenv("QDB_LIB_PATH")); p != "" {
		out = append(out, p)
	}
	fileName, err := libraryFileName(libraryName)
	if err != nil {
		return out
	}
	if dir := firstNonEmpty(config.Dir, os.Getenv("QDB_LIB_DIR")); dir != "" {
		if platform, err := platformDir(); err == nil {
			out = append(out, filepath.Join(dir, platform, fileName))
			// musl hosts can still run the glibc build through gcompat
			if strings.Contains(platform, "_musl") {
				out = append(out, filepath.Join(dir, strings.Replace(platform, "_musl", "", 1), fileName))
			}
		}
		out = append(out, filepath.Join(dir, fileName))
	}
	// bare name defers to the system loader search path
	out = append(out, fileName)
	return out
}

func libraryFileName(name string) (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return fmt.Sprintf("lib%v.dylib", name), nil
	case "linux", "freebsd":
		return fmt.Sprintf("lib%v.so", name), nil
	case "windows":
		return fmt.Sprintf("%v.dll", name), nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

func platformDir() (string, error) {
	var archSuffix string
	switch runtime.GOARCH {
	case "amd64", "arm64", "386":
		archSuffix = runtime.GOARCH
	default:
		return "", fmt.Errorf("unsupported architecture: %s", runtime.GOARCH)
	}

	libcVariant := ""
	if runtime.GOOS == "linux" && isMuslLibc() {
		libcVariant = "_musl"
	}
	return fmt.Sprintf("%s%s_%s", runtime.GOOS, libcVariant, archSuffix), nil
}

// isMuslLibc detects if the system is using musl libc (Alpine Linux, Void Linux, etc.)
func isMuslLibc() bool {
	if _, err := os.Stat("/etc/alpine-release"); err == nil {
		return true
	}
	cmd := exec.Command("ldd", "--version")
	if output, err := cmd.CombinedOutput(); err == nil {
		if strings.Contains(strings.ToLower(string(output)), "musl") {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
