package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParamIsValid(t *testing.T) {
	serverParam, err := parseServerParam(ParamDefaultFile)
	require.NoError(t, err)
	require.NoError(t, serverParam.Validate())

	assert.Equal(t, "weather", serverParam.SyncParam.Topic)
	assert.Equal(t, "SUNSHINE_DATA", serverParam.SyncParam.Stream)
	assert.Equal(t, time.Second, serverParam.DisplayParam.TickPeriodDuration())
	assert.Equal(t, 500*time.Millisecond, serverParam.SyncParam.BackoffInitialDuration())
	assert.Equal(t, 30*time.Second, serverParam.SyncParam.BreakerCooldownDuration())
}

func TestInvalidParam(t *testing.T) {
	serverParam, err := parseServerParam(ParamDefaultFile)
	require.NoError(t, err)

	serverParam.SyncParam.BackoffMax = serverParam.SyncParam.BackoffInitial - 1
	assert.Error(t, serverParam.Validate())

	serverParam, _ = parseServerParam(ParamDefaultFile)
	serverParam.ApiParam.Enabled = true
	serverParam.ApiParam.ApiKey = ""
	assert.Error(t, serverParam.Validate())

	serverParam, _ = parseServerParam(ParamDefaultFile)
	serverParam.SyncParam.NatsUrl = ""
	assert.Error(t, serverParam.Validate())

	_, err = parseServerParam([]byte("sync: ["))
	assert.Error(t, err)
}

func TestLoadParamCreatesDefaultAndAppliesEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvNatsUrl, "nats://10.0.0.2:4222")
	t.Setenv(EnvAssetBucket, "")

	sc := &ServerConfig{ConfigDir: dir}
	serverParam, err := sc.loadParam()
	require.NoError(t, err)

	assert.Equal(t, "nats://10.0.0.2:4222", serverParam.SyncParam.NatsUrl)
	assert.Equal(t, "sunshine-assets", serverParam.SyncParam.AssetBucket)

	// the saved file keeps the defaults, not the overrides
	saved, err := os.ReadFile(filepath.Join(dir, paramFilename))
	require.NoError(t, err)
	assert.Contains(t, string(saved), "nats://127.0.0.1:4222")
}

func TestLoadParamReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvApiKey, "")
	os.Unsetenv(EnvApiKey)
	require.NoError(t, os.WriteFile(filepath.Join(dir, envFilename), []byte(EnvApiKey+"=secret\n"), 0600))

	sc := &ServerConfig{ConfigDir: dir}
	serverParam, err := sc.loadParam()
	require.NoError(t, err)
	assert.Equal(t, "secret", serverParam.ApiParam.ApiKey)
}

func TestStateToggleAndFlush(t *testing.T) {
	filename := filepath.Join(t.TempDir(), stateFilename)

	state := NewServerState(filename)
	assert.False(t, state.InvertedBackground())
	assert.True(t, state.ToggleBackground())
	assert.Equal(t, int64(1), state.TapCount())
	state.FlushSave()

	reloaded := NewServerState(filename)
	assert.True(t, reloaded.InvertedBackground())
	assert.Equal(t, int64(1), reloaded.TapCount())
}
