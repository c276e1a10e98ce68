package functionRuntime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv(EnvHTTPAddress, ":9000")
	t.Setenv(EnvGRPCAddress, ":9001")
	t.Setenv(EnvRequestTimeout, "15s")
	t.Setenv(EnvMaxBodyBytes, "1024")
	t.Setenv(EnvLogLevel, "debug")

	c, err := SettingsFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.HTTPAddress)
	assert.Equal(t, ":9001", c.GRPCAddress)
	assert.Equal(t, 15*time.Second, c.RequestTimeout)
	assert.Equal(t, int64(1024), c.MaxBodyBytes)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "text", c.Log.Format)
}

func TestSettingsFromEnv_Defaults(t *testing.T) {
	t.Setenv(EnvHTTPAddress, "")

	c, err := SettingsFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.HTTPAddress)
	assert.Empty(t, c.GRPCAddress)
	assert.Equal(t, 60*time.Second, c.RequestTimeout)
	assert.Equal(t, int64(4<<20), c.MaxBodyBytes)
	assert.Equal(t, 5*time.Second, c.ShutdownTimeout)
}

func TestSettingsFromEnv_Invalid(t *testing.T) {
	t.Setenv(EnvRequestTimeout, "soon")
	_, err := SettingsFromEnv()
	assert.Error(t, err)
}
