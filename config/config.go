package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	URI struct {
		// ParamsPrealloc for http.Request.Params field.
		ParamsPrealloc int `yaml:"params_prealloc"`
	}

	Headers struct {
		// Prealloc is the initial capacity of http.Request.Headers.
		Prealloc int `yaml:"prealloc"`
		// MaxCount is the maximal number of header lines in a single request head. Exceeding
		// it is fatal for the connection.
		MaxCount int `yaml:"max_count"`
		// MaxSize limits the whole request head, including the request line. An incomplete head
		// longer than that is fatal for the connection.
		MaxSize int `yaml:"max_size"`
		// MaxTrailerSize limits the trailer section after the last chunk of a chunked body.
		MaxTrailerSize int `yaml:"max_trailer_size"`
	}

	Body struct {
		// MaxSize describes the maximal size of a body declared via Content-Length, that can
		// be processed. Larger declarations are fatal for the connection.
		MaxSize uint64 `yaml:"max_size"`
	}

	NET struct {
		// ReadBufferSize is the initial size of the per-connection buffer in bytes.
		ReadBufferSize int `yaml:"read_buffer_size"`
		// BufferGrowth is how many bytes the per-connection buffer grows by when it has no
		// spare capacity left. The buffer never shrinks.
		BufferGrowth int `yaml:"buffer_growth"`
		// ReadTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, it'll be closed.
		ReadTimeout time.Duration `yaml:"read_timeout"`
		// WriteBufferSize is the initial capacity of the response serialization buffer.
		WriteBufferSize int `yaml:"write_buffer_size"`
		// MaxConnections limits the number of simultaneously served connections. Zero means
		// unlimited.
		MaxConnections int `yaml:"max_connections" test:"nullable"`
	}
)

// Config holds settings used across various parts of kiln, mainly restrictions, limitations
// and pre-allocations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	URI     URI     `yaml:"uri"`
	Headers Headers `yaml:"headers"`
	Body    Body    `yaml:"body"`
	NET     NET     `yaml:"net"`
}

// Default returns default config. Those are initially well-balanced, however maximal defaults
// are pretty permitting.
func Default() *Config {
	return &Config{
		URI: URI{
			ParamsPrealloc: 5,
		},
		Headers: Headers{
			Prealloc:       10,
			MaxCount:       50,
			MaxSize:        64 * 1024,
			MaxTrailerSize: 8 * 1024,
		},
		Body: Body{
			MaxSize: 512 * 1024 * 1024, // 512 megabytes
		},
		NET: NET{
			ReadBufferSize:  4 * 1024,
			BufferGrowth:    4 * 1024,
			ReadTimeout:     90 * time.Second,
			WriteBufferSize: 2 * 1024,
		},
	}
}

// Parse overlays YAML-encoded settings on top of the defaults. Durations are written the
// way time.ParseDuration accepts them, e.g. "30s".
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return Parse(data)
}

func (c *Config) validate() error {
	switch {
	case c.NET.ReadBufferSize <= 0:
		return fmt.Errorf("config: net.read_buffer_size must be positive, got %d", c.NET.ReadBufferSize)
	case c.NET.BufferGrowth <= 0:
		return fmt.Errorf("config: net.buffer_growth must be positive, got %d", c.NET.BufferGrowth)
	case c.NET.ReadTimeout <= 0:
		return fmt.Errorf("config: net.read_timeout must be positive, got %s", c.NET.ReadTimeout)
	case c.NET.MaxConnections < 0:
		return fmt.Errorf("config: net.max_connections must not be negative, got %d", c.NET.MaxConnections)
	case c.Headers.MaxCount <= 0:
		return fmt.Errorf("config: headers.max_count must be positive, got %d", c.Headers.MaxCount)
	}

	return nil
}
