// Package config loads the carenet YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no path is given and the file exists.
const DefaultPath = "carenet.yaml"

// EnvPath names the environment variable holding the config path.
const EnvPath = "CARENET_CONFIG"

// Store drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// Server configures the HTTP listener and its timeouts.
type Server struct {
	ListenAddress   string        `yaml:"listen_address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CORS lists the browser origins allowed to call the API.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Catalog locates the provider catalog.
type Catalog struct {
	Path string `yaml:"path"` // local path (.json or .json.gz) or s3://bucket/key
}

// Store selects and locates the appointment store.
type Store struct {
	Driver string `yaml:"driver"` // file | sqlite | s3 | memory
	Path   string `yaml:"path"`   // JSON file or SQLite database
	S3Key  string `yaml:"s3_key"`
}

// AWS holds the region and bucket used by S3-backed sources and stores.
type AWS struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Config is the full carenet configuration file.
type Config struct {
	Server  Server  `yaml:"server"`
	CORS    CORS    `yaml:"cors"`
	Catalog Catalog `yaml:"catalog"`
	Store   Store   `yaml:"store"`
	AWS     AWS     `yaml:"aws"`
	Log     Log     `yaml:"log"`
}

// Resolve picks the config path: explicit, then $CARENET_CONFIG, then
// DefaultPath. required reports whether a missing file is an error.
func Resolve(explicit string) (path string, required bool) {
	if explicit != "" {
		return explicit, true
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env, true
	}
	return DefaultPath, false
}

// Load reads path, fills defaults, applies environment overrides and
// validates the result. When required is false a missing file yields the
// defaults.
func Load(path string, required bool) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case !required && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	c.applyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "data/providers.json"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverFile
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/appointments.json"
	}
	if c.Store.S3Key == "" {
		c.Store.S3Key = "appointments.json"
	}
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"CARENET_LISTEN_ADDRESS", &c.Server.ListenAddress},
		{"CARENET_CATALOG_PATH", &c.Catalog.Path},
		{"CARENET_STORE_DRIVER", &c.Store.Driver},
		{"CARENET_STORE_PATH", &c.Store.Path},
		{"CARENET_LOG_LEVEL", &c.Log.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Validate rejects unknown enum values.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverFile, DriverSQLite, DriverMemory:
	case DriverS3:
		if c.AWS.Bucket == "" {
			return errors.New("store driver s3 requires aws.bucket")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
