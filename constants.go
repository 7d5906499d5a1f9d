package devicemgr

import "github.com/gregm123456/hailo-device-manager/internal/config"

// Re-export configuration defaults for the public API.
const (
	DefaultSocketPath      = config.DefaultSocketPath
	DefaultMaxMessageBytes = config.DefaultMaxMessageBytes
	DefaultQueueCapacity   = config.DefaultQueueCapacity
	DefaultHTTPBind        = config.DefaultHTTPBind
)

var (
	DefaultShutdownGrace = config.DefaultShutdownGrace
	DefaultStatusTimeout = config.DefaultStatusTimeout
)
