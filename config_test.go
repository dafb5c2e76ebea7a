package qdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearConfigEnv(t *testing.T) {
	t.Setenv("QDB_CLUSTER_URI", "")
	t.Setenv("QDB_LIB_PATH", "")
}

func TestDefaultConfig(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, DefaultClusterURI, cfg.ClusterURI)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "normal", cfg.Batch.PushMode)
}

func TestLoadConfigFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("QDB_TEST_USER_FILE", "/etc/qdb/user.json")

	path := writeConfig(t, `
cluster_uri: qdb://10.0.0.5:2836
timeout: 5s
security:
  cluster_public_key_file: /etc/qdb/cluster.key
  user_credentials_file: ${QDB_TEST_USER_FILE}
log:
  level: debug
  encoding: console
  output_paths: [stderr]
library:
  dir: /opt/qdb/lib
batch:
  shard_size: 1h
  push_mode: fast
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "qdb://10.0.0.5:2836", cfg.ClusterURI)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "/etc/qdb/user.json", cfg.Security.UserCredentialsFile)
	assert.Equal(t, LogConfig{Level: "debug", Encoding: "console", OutputPaths: []string{"stderr"}}, cfg.Log)
	assert.Equal(t, "/opt/qdb/lib", cfg.Library.Dir)
	assert.Equal(t, BatchConfig{ShardSize: time.Hour, PushMode: "fast"}, cfg.Batch)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("QDB_CLUSTER_URI", "qdb://override:2836")
	t.Setenv("QDB_LIB_PATH", "/tmp/libqdb_api.so")

	cfg, err := LoadConfig(writeConfig(t, "cluster_uri: qdb://file:2836\n"))
	require.NoError(t, err)
	assert.Equal(t, "qdb://override:2836", cfg.ClusterURI)
	assert.Equal(t, "/tmp/libqdb_api.so", cfg.Library.Path)
}

func TestLoadConfigErrors(t *testing.T) {
	clearConfigEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "timeout: [1, 2"))
	assert.ErrorContains(t, err, "failed to parse YAML")

	_, err = LoadConfig(writeConfig(t, "cluster_uri: http://nope\n"))
	assert.ErrorContains(t, err, "cluster_uri")
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"uri":        func(c *Config) { c.ClusterURI = "tcp://host:1" },
		"timeout":    func(c *Config) { c.Timeout = 0 },
		"shard size": func(c *Config) { c.Batch.ShardSize = time.Microsecond },
		"push mode":  func(c *Config) { c.Batch.PushMode = "eventually" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 7 * time.Second

	opts, err := cfg.Options()
	require.NoError(t, err)
	var o handleOptions
	for _, opt := range opts {
		opt(&o)
	}
	assert.Equal(t, 7*time.Second, o.timeout)
	assert.False(t, o.security.enabled())

	dir := t.TempDir()
	cfg.Security = SecurityConfig{
		ClusterPublicKeyFile: filepath.Join(dir, "cluster.key"),
		UserCredentialsFile:  filepath.Join(dir, "user.json"),
	}
	_, err = cfg.Options()
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(cfg.Security.ClusterPublicKeyFile, []byte("KEY"), 0o600))
	require.NoError(t, os.WriteFile(cfg.Security.UserCredentialsFile, []byte(`{"username":"u","secret_key":"s"}`), 0o600))
	opts, err = cfg.Options()
	require.NoError(t, err)
	o = handleOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	assert.Equal(t, Security{ClusterPublicKey: "KEY", UserName: "u", UserPrivateKey: "s"}, o.security)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("QDB_TEST_HOST", "db1")
	assert.Equal(t, "qdb://db1:2836", substituteEnvVars("qdb://${QDB_TEST_HOST}:2836"))
	assert.Equal(t, "a  b", substituteEnvVars("a ${QDB_TEST_UNSET_VAR} b"))
	assert.Equal(t, "open ${brace", substituteEnvVars("open ${brace"))
}
