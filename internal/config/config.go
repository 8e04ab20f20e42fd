// Package config loads the runtime's TOML configuration file and
// supplies the defaults used when a value is left unset.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// HeapConfig bounds a variant.Heap's internal caches.
type HeapConfig struct {
	RevWalkCacheSize int `toml:"rev_walk_cache_size"`
	CloneCacheSize   int `toml:"clone_cache_size"`
}

// StreamConfig bounds the stream runtime's buffers and timers.
type StreamConfig struct {
	ThrottleThresholdBytes int `toml:"throttle_threshold_bytes"`
	MaxFramePayloadBytes   int `toml:"max_frame_payload_bytes"`
	MaxMessageSizeBytes    int `toml:"max_message_size_bytes"`

	NoRespTimeToPingSeconds  int `toml:"noresptimetoping_seconds"`
	NoRespTimeToCloseSeconds int `toml:"noresptimetoclose_seconds"`

	// CompressMinBytes is the payload-size floor above which the
	// websocket writer's optional permessage-deflate-shaped codec
	// hook is worth applying.
	CompressMinBytes int `toml:"compress_min_bytes"`
}

// TLSConfig configures the optional TLS session cache.
type TLSConfig struct {
	SessionCacheSizeBytes int      `toml:"session_cache_size_bytes"`
	SessionCacheUsers     []string `toml:"session_cache_users"`
}

// Config is the top-level configuration document.
type Config struct {
	Heap   HeapConfig   `toml:"heap"`
	Stream StreamConfig `toml:"stream"`
	TLS    TLSConfig    `toml:"tls"`
}

// Default returns the configuration used when no file is supplied,
// matching the constants already hard-coded as package defaults
// (variant.NewHeap's 4096 cache sizes, streamrt's 512 KiB throttle
// threshold and 4 KiB/64 KiB frame/message caps).
func Default() Config {
	return Config{
		Heap: HeapConfig{
			RevWalkCacheSize: 4096,
			CloneCacheSize:   4096,
		},
		Stream: StreamConfig{
			ThrottleThresholdBytes:   512 * 1024,
			MaxFramePayloadBytes:     4 * 1024,
			MaxMessageSizeBytes:      64 * 1024,
			NoRespTimeToPingSeconds:  30,
			NoRespTimeToCloseSeconds: 90,
			CompressMinBytes:         1024,
		},
	}
}

// Load reads and parses a TOML file at path, filling any zero-valued
// field with Default()'s value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: reading %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parsing %s", path)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Heap.RevWalkCacheSize == 0 {
		c.Heap.RevWalkCacheSize = d.Heap.RevWalkCacheSize
	}
	if c.Heap.CloneCacheSize == 0 {
		c.Heap.CloneCacheSize = d.Heap.CloneCacheSize
	}
	if c.Stream.ThrottleThresholdBytes == 0 {
		c.Stream.ThrottleThresholdBytes = d.Stream.ThrottleThresholdBytes
	}
	if c.Stream.MaxFramePayloadBytes == 0 {
		c.Stream.MaxFramePayloadBytes = d.Stream.MaxFramePayloadBytes
	}
	if c.Stream.MaxMessageSizeBytes == 0 {
		c.Stream.MaxMessageSizeBytes = d.Stream.MaxMessageSizeBytes
	}
	if c.Stream.NoRespTimeToPingSeconds == 0 {
		c.Stream.NoRespTimeToPingSeconds = d.Stream.NoRespTimeToPingSeconds
	}
	if c.Stream.NoRespTimeToCloseSeconds == 0 {
		c.Stream.NoRespTimeToCloseSeconds = d.Stream.NoRespTimeToCloseSeconds
	}
	if c.Stream.CompressMinBytes == 0 {
		c.Stream.CompressMinBytes = d.Stream.CompressMinBytes
	}
}

// NoRespTimeToPing returns the configured ping timeout as a Duration.
func (c Config) NoRespTimeToPing() time.Duration {
	return time.Duration(c.Stream.NoRespTimeToPingSeconds) * time.Second
}

// NoRespTimeToClose returns the configured close timeout as a Duration.
func (c Config) NoRespTimeToClose() time.Duration {
	return time.Duration(c.Stream.NoRespTimeToCloseSeconds) * time.Second
}
