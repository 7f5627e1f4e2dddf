// Package config loads placekit settings from YAML with PLACEKIT_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"placekit/internal/blob"
	"placekit/internal/logging"
	"placekit/internal/remote"
)

// Config holds all placekit configuration.
type Config struct {
	// Blob backs the local store.
	Blob    BlobConfig     `yaml:"blob"`
	Local   LocalConfig    `yaml:"local"`
	Remote  RemoteConfig   `yaml:"remote"`
	Server  ServerConfig   `yaml:"server"`
	Logging logging.Config `yaml:"logging"`
}

// BlobConfig selects a blob backend.
type BlobConfig struct {
	Driver string        `yaml:"driver"` // fs, s3, memory
	FSRoot string        `yaml:"fs_root"`
	S3     blob.S3Config `yaml:"s3"`
}

// LocalConfig configures the on-device collection blob.
type LocalConfig struct {
	Key      string `yaml:"key"`
	Compress bool   `yaml:"compress"`
}

// RemoteConfig configures the remote record store. An empty driver disables
// remote sync.
type RemoteConfig struct {
	Driver      string     `yaml:"driver"` // memory, sqlite, postgres, blob, http
	RecordType  string     `yaml:"record_type"`
	SQLitePath  string     `yaml:"sqlite_path"`
	PostgresDSN string     `yaml:"postgres_dsn"`
	URL         string     `yaml:"url"`
	Blob        BlobConfig `yaml:"blob"`
	BlobPrefix  string     `yaml:"blob_prefix"`
	Timeout     string     `yaml:"timeout"`
}

// ServerConfig configures the record API server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Driver is the record store the server exposes.
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Blob:  BlobConfig{Driver: string(blob.DriverFilesystem), FSRoot: "./placekit-data"},
		Local: LocalConfig{Key: "placed-objects.json"},
		Remote: RemoteConfig{
			RecordType: "PlacedObject",
			SQLitePath: "placekit-remote.db",
			BlobPrefix: "records",
			Timeout:    "30s",
		},
		Server: ServerConfig{
			Addr:       ":8080",
			Driver:     string(remote.DriverSQLite),
			SQLitePath: "placekit-server.db",
		},
		Logging: logging.Config{Level: "info", Encoding: "json"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty or missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("PLACEKIT_BLOB_DRIVER", &c.Blob.Driver)
	str("PLACEKIT_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("PLACEKIT_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("PLACEKIT_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("PLACEKIT_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("PLACEKIT_BLOB_S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	str("PLACEKIT_BLOB_S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	str("PLACEKIT_REMOTE_DRIVER", &c.Remote.Driver)
	str("PLACEKIT_SQLITE_PATH", &c.Remote.SQLitePath)
	str("PLACEKIT_POSTGRES_DSN", &c.Remote.PostgresDSN)
	str("PLACEKIT_REMOTE_URL", &c.Remote.URL)
	str("PLACEKIT_SERVER_ADDR", &c.Server.Addr)
	str("PLACEKIT_LOG_LEVEL", &c.Logging.Level)
	if err := boolean("PLACEKIT_BLOB_S3_PATH_STYLE", &c.Blob.S3.PathStyle); err != nil {
		return err
	}
	return boolean("PLACEKIT_COMPRESS", &c.Local.Compress)
}

var (
	blobDrivers   = []string{string(blob.DriverFilesystem), string(blob.DriverS3), string(blob.DriverMemory)}
	remoteDrivers = []string{"", string(remote.DriverMemory), string(remote.DriverSQLite), string(remote.DriverPostgres), string(remote.DriverBlob), string(remote.DriverHTTP)}
)

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if c.Blob.Driver != "" && !oneOf(c.Blob.Driver, blobDrivers) {
		return fmt.Errorf("blob.driver: unknown driver %q", c.Blob.Driver)
	}
	if c.Blob.Driver == string(blob.DriverS3) && c.Blob.S3.Bucket == "" {
		return errors.New("blob.s3.bucket is required for the s3 driver")
	}
	if !oneOf(c.Remote.Driver, remoteDrivers) {
		return fmt.Errorf("remote.driver: unknown driver %q", c.Remote.Driver)
	}
	if c.Remote.Driver == string(remote.DriverHTTP) && c.Remote.URL == "" {
		return errors.New("remote.url is required for the http driver")
	}
	if c.Remote.Driver == string(remote.DriverBlob) && c.Remote.Blob.Driver != "" && !oneOf(c.Remote.Blob.Driver, blobDrivers) {
		return fmt.Errorf("remote.blob.driver: unknown driver %q", c.Remote.Blob.Driver)
	}
	if _, err := c.SyncTimeout(); err != nil {
		return err
	}
	if c.Server.Driver == "" || !oneOf(c.Server.Driver, remoteDrivers) || c.Server.Driver == string(remote.DriverHTTP) {
		return fmt.Errorf("server.driver: unsupported driver %q", c.Server.Driver)
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// SyncTimeout parses remote.timeout.
func (c *Config) SyncTimeout() (time.Duration, error) {
	if c.Remote.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Remote.Timeout)
	if err != nil {
		return 0, fmt.Errorf("remote.timeout: %w", err)
	}
	return d, nil
}

// RemoteEnabled reports whether a remote driver is configured.
func (c *Config) RemoteEnabled() bool { return c.Remote.Driver != "" }

// LocalBlob returns the blob configuration backing the local store.
func (c *Config) LocalBlob() blob.Config {
	return c.Blob.toBlob()
}

// RemoteStore returns the remote.Config for the client-side remote.
func (c *Config) RemoteStore() remote.Config {
	timeout, _ := c.SyncTimeout()
	return remote.Config{
		Driver:      remote.Driver(strings.ToLower(c.Remote.Driver)),
		SQLitePath:  c.Remote.SQLitePath,
		PostgresDSN: c.Remote.PostgresDSN,
		Blob:        c.Remote.Blob.toBlob(),
		BlobPrefix:  c.Remote.BlobPrefix,
		URL:         c.Remote.URL,
		Timeout:     timeout,
	}
}

// ServerStore returns the remote.Config for the store the API server exposes.
func (c *Config) ServerStore() remote.Config {
	return remote.Config{
		Driver:      remote.Driver(strings.ToLower(c.Server.Driver)),
		SQLitePath:  c.Server.SQLitePath,
		PostgresDSN: c.Server.PostgresDSN,
		Blob:        c.Remote.Blob.toBlob(),
		BlobPrefix:  c.Remote.BlobPrefix,
	}
}

func (b BlobConfig) toBlob() blob.Config {
	return blob.Config{Driver: blob.Driver(strings.ToLower(b.Driver)), FSRoot: b.FSRoot, S3: b.S3}
}
