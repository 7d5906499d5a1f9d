package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, DefaultSocketPath, cfg.SocketPath)
	require.Equal(t, DefaultMaxMessageBytes, cfg.MaxMessageBytes)
	require.Equal(t, DefaultQueueCapacity, cfg.QueueCapacity)
	require.Equal(t, DefaultHTTPBind, cfg.HTTPBind)
	require.Equal(t, 5*time.Second, cfg.ShutdownGrace)
	require.True(t, cfg.HTTPEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("HAILO_DEVICE_SOCKET", "/tmp/custom.sock")
	t.Setenv("HAILO_DEVICE_SOCKET_GROUP", "hailo")
	t.Setenv("HAILO_DEVICE_MAX_MESSAGE_BYTES", "1048576")
	t.Setenv("HAILO_DEVICE_QUEUE_CAPACITY", "16")
	t.Setenv("HAILO_DEVICE_HTTP_BIND", "0.0.0.0:9000")
	t.Setenv("HAILO_DEVICE_SHUTDOWN_GRACE_SECS", "10")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.sock", cfg.SocketPath)
	require.Equal(t, "hailo", cfg.SocketGroup)
	require.Equal(t, 1048576, cfg.MaxMessageBytes)
	require.Equal(t, 16, cfg.QueueCapacity)
	require.Equal(t, "0.0.0.0:9000", cfg.HTTPBind)
	require.Equal(t, 10*time.Second, cfg.ShutdownGrace)
}

func TestFromEnv_HTTPDisabled(t *testing.T) {
	t.Setenv("HAILO_DEVICE_HTTP_BIND", "off")
	cfg, err := FromEnv()
	require.NoError(t, err)
	require.False(t, cfg.HTTPEnabled())
}

func TestFromEnv_InvalidMaxMessageBytes(t *testing.T) {
	t.Setenv("HAILO_DEVICE_MAX_MESSAGE_BYTES", "not-a-number")
	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnv_InvalidQueueCapacity(t *testing.T) {
	t.Setenv("HAILO_DEVICE_QUEUE_CAPACITY", "0")
	_, err := FromEnv()
	require.Error(t, err)
}
