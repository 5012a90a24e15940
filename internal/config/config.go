package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/i5heu/linkchain/pkg/backup"
	"github.com/i5heu/linkchain/pkg/types"
	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"

	DefaultPath = "hash.txt"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Digest  string        `yaml:"digest"`
	Log     LogConfig     `yaml:"log"`
	Backup  BackupConfig  `yaml:"backup"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	MinimumFreeMB uint64 `yaml:"minimumFreeMB"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type BackupConfig struct {
	Path        string `yaml:"path"` // empty disables backups
	Compression string `yaml:"compression"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var config Config
	config.applyDefaults()
	return config
}

// Load reads a YAML file. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}

	if c.Storage.Path == "" {
		c.Storage.Path = DefaultPath
	}

	if c.Digest == "" {
		c.Digest = types.DefaultScheme.String()
	}

	if c.Log.Level == "" {
		c.Log.Level = logrus.InfoLevel.String()
	}

	if c.Backup.Compression == "" {
		c.Backup.Compression = string(backup.CompressionXZ)
	}
}

// ApplyArgs overwrites the storage path and backend with positional
// arguments when they are provided.
func (c *Config) ApplyArgs(args []string) {
	if len(args) > 0 && args[0] != "" {
		c.Storage.Path = args[0]
	}

	if len(args) > 1 && args[1] != "" {
		c.Storage.Backend = args[1]
	}
}

func (c Config) Scheme() (types.DigestScheme, error) {
	scheme, err := types.ParseDigestScheme(c.Digest)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return scheme, nil
}

// Validate checks enum values and that the storage directory has at least
// MinimumFreeMB available.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("%w: no storage path", ErrInvalidConfig)
	}

	if _, err := c.Scheme(); err != nil {
		return err
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if _, err := backup.ParseCompression(c.Backup.Compression); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Storage.MinimumFreeMB == 0 {
		return nil
	}

	dir := c.StorageDir()
	usage, err := disk.Usage(dir)
	if err != nil {
		return fmt.Errorf("%w: disk usage of %s: %v", ErrInvalidConfig, dir, err)
	}
	availableMB := usage.Free / (1024 * 1024)
	if availableMB < c.Storage.MinimumFreeMB {
		return fmt.Errorf("%w: not enough space available on disk: %d MB free, %d MB required",
			ErrInvalidConfig, availableMB, c.Storage.MinimumFreeMB)
	}

	return nil
}

// StorageDir is the existing directory that holds the storage. Badger
// stores are directories themselves, the other backends are single files.
func (c Config) StorageDir() string {
	if c.Storage.Backend == BackendBadger {
		if info, err := os.Stat(c.Storage.Path); err == nil && info.IsDir() {
			return c.Storage.Path
		}
	}
	return filepath.Dir(c.Storage.Path)
}
