// Package config loads the hearth service configuration.
//
// Values are layered: built-in defaults, then the YAML file, then any .env
// file, then HEARTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/hearth/internal/disk"
	"github.com/jbweber/hearth/internal/identity"
	"github.com/jbweber/hearth/internal/libvirt"
	"github.com/jbweber/hearth/internal/session"
	"github.com/jbweber/hearth/internal/store"
)

// DefaultPath is read when no config file is given and it exists.
const DefaultPath = "/etc/hearth/hearth.yaml"

// Session backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Libvirt  LibvirtConfig  `yaml:"libvirt"`
	Disk     DiskConfig     `yaml:"disk"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
	Images   []ImageConfig  `yaml:"images,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the metadata database.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // sqlite or postgres
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns,omitempty"`
	LogSQL       bool   `yaml:"log_sql,omitempty"`
}

// LibvirtConfig configures the hypervisor connection.
type LibvirtConfig struct {
	Socket         string        `yaml:"socket"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	Network        string        `yaml:"network,omitempty"` // libvirt network for new VMs; empty means no NIC
}

// DiskConfig configures per-VM disk creation.
type DiskConfig struct {
	BaseDir       string        `yaml:"base_dir"`
	Ext           string        `yaml:"ext"`
	QemuImg       string        `yaml:"qemu_img"`
	Sudo          bool          `yaml:"sudo,omitempty"`
	CreateTimeout time.Duration `yaml:"create_timeout"`
	ChownQEMU     bool          `yaml:"chown_qemu,omitempty"`
}

// SessionConfig selects the token session backend.
type SessionConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
}

// RedisConfig is used when the session backend is redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ImageConfig is a base image seeded into the catalog by migrate.
type ImageConfig struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	MinDiskGB int    `yaml:"min_disk_gb,omitempty"`
	MinRAMMB  int    `yaml:"min_ram_mb,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Load reads the YAML file at path, then applies .env files and HEARTH_*
// environment variables on top. An empty path uses DefaultPath if it exists
// and defaults otherwise.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := &Config{}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from HEARTH_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	dur := func(dst *time.Duration) func(string) error {
		return func(v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*dst = d
			return nil
		}
	}
	integer := func(dst *int) func(string) error {
		return func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		}
	}
	boolean := func(dst *bool) func(string) error {
		return func(v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*dst = b
			return nil
		}
	}

	vars := []struct {
		name string
		set  func(string) error
	}{
		{"HEARTH_LISTEN", str(&c.Server.Listen)},
		{"HEARTH_DB_DRIVER", str(&c.Database.Driver)},
		{"HEARTH_DB_DSN", str(&c.Database.DSN)},
		{"HEARTH_LIBVIRT_SOCKET", str(&c.Libvirt.Socket)},
		{"HEARTH_LIBVIRT_CALL_TIMEOUT", dur(&c.Libvirt.CallTimeout)},
		{"HEARTH_LIBVIRT_NETWORK", str(&c.Libvirt.Network)},
		{"HEARTH_DISK_BASE_DIR", str(&c.Disk.BaseDir)},
		{"HEARTH_DISK_SUDO", boolean(&c.Disk.Sudo)},
		{"HEARTH_DISK_CREATE_TIMEOUT", dur(&c.Disk.CreateTimeout)},
		{"HEARTH_SESSION_BACKEND", str(&c.Session.Backend)},
		{"HEARTH_SESSION_TTL", dur(&c.Session.TTL)},
		{"HEARTH_REDIS_ADDR", str(&c.Session.Redis.Addr)},
		{"HEARTH_REDIS_PASSWORD", str(&c.Session.Redis.Password)},
		{"HEARTH_REDIS_DB", integer(&c.Session.Redis.DB)},
		{"HEARTH_LOG_LEVEL", str(&c.Log.Level)},
		{"HEARTH_LOG_FORMAT", str(&c.Log.Format)},
	}

	for _, v := range vars {
		val, ok := lookup(v.name)
		if !ok || val == "" {
			continue
		}
		if err := v.set(val); err != nil {
			return fmt.Errorf("invalid %s=%q: %w", v.name, val, err)
		}
	}
	return nil
}

// Normalize fills unset fields with defaults and canonicalizes enum values.
func (c *Config) Normalize() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	// Creates run qemu-img and several libvirt calls before responding.
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = store.DriverSQLite
	}
	if c.Database.DSN == "" && c.Database.Driver == store.DriverSQLite {
		c.Database.DSN = "/var/lib/hearth/hearth.db"
	}

	if c.Libvirt.Socket == "" {
		c.Libvirt.Socket = libvirt.DefaultSocketPath
	}
	if c.Libvirt.ConnectTimeout == 0 {
		c.Libvirt.ConnectTimeout = libvirt.DefaultConnectTimeout
	}
	if c.Libvirt.CallTimeout == 0 {
		c.Libvirt.CallTimeout = libvirt.DefaultCallTimeout
	}

	if c.Disk.BaseDir == "" {
		c.Disk.BaseDir = disk.DefaultBaseDir
	}
	c.Disk.Ext = strings.TrimPrefix(c.Disk.Ext, ".")
	if c.Disk.Ext == "" {
		c.Disk.Ext = disk.DefaultExt
	}
	if c.Disk.QemuImg == "" {
		c.Disk.QemuImg = disk.DefaultQemuImg
	}
	if c.Disk.CreateTimeout == 0 {
		c.Disk.CreateTimeout = disk.DefaultCreateTimeout
	}

	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	if c.Session.Backend == "" {
		c.Session.Backend = SessionMemory
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = identity.DefaultTokenTTL
	}
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = session.DefaultKeyPrefix
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the configuration for errors.
// Does not check that the socket, database or images are reachable.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		return fmt.Errorf("server.listen: %w", err)
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"libvirt.connect_timeout": c.Libvirt.ConnectTimeout,
		"libvirt.call_timeout":    c.Libvirt.CallTimeout,
		"disk.create_timeout":     c.Disk.CreateTimeout,
		"session.ttl":             c.Session.TTL,
	} {
		if d < 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", store.DriverSQLite, store.DriverPostgres, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for %s", c.Database.Driver)
	}

	if !strings.HasPrefix(c.Disk.BaseDir, "/") {
		return fmt.Errorf("disk.base_dir must be an absolute path, got %q", c.Disk.BaseDir)
	}

	switch c.Session.Backend {
	case SessionMemory:
	case SessionRedis:
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("session.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("session.backend must be %q or %q, got %q", SessionMemory, SessionRedis, c.Session.Backend)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	seen := make(map[string]bool)
	for i, img := range c.Images {
		if img.Name == "" {
			return fmt.Errorf("images[%d]: name is required", i)
		}
		if !strings.HasPrefix(img.Path, "/") {
			return fmt.Errorf("images[%d]: path must be absolute, got %q", i, img.Path)
		}
		if seen[img.Name] {
			return fmt.Errorf("images[%d]: duplicate image name %q", i, img.Name)
		}
		seen[img.Name] = true
	}

	return nil
}

// StoreConfig returns the database settings for store.Open.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:       c.Database.Driver,
		DSN:          c.Database.DSN,
		MaxOpenConns: c.Database.MaxOpenConns,
		LogSQL:       c.Database.LogSQL,
	}
}

// LibvirtOptions returns the hypervisor connection settings.
func (c *Config) LibvirtOptions() libvirt.Options {
	return libvirt.Options{
		SocketPath:     c.Libvirt.Socket,
		ConnectTimeout: c.Libvirt.ConnectTimeout,
		CallTimeout:    c.Libvirt.CallTimeout,
	}
}

// DiskOptions returns the disk manager settings.
func (c *Config) DiskOptions() disk.Options {
	return disk.Options{
		BaseDir:       c.Disk.BaseDir,
		Ext:           c.Disk.Ext,
		QemuImg:       c.Disk.QemuImg,
		UseSudo:       c.Disk.Sudo,
		CreateTimeout: c.Disk.CreateTimeout,
		ChownQEMU:     c.Disk.ChownQEMU,
	}
}

// SeedImages returns the configured images as catalog rows.
func (c *Config) SeedImages() []store.Image {
	images := make([]store.Image, 0, len(c.Images))
	for _, img := range c.Images {
		images = append(images, store.Image{
			Name:      img.Name,
			Filepath:  img.Path,
			MinDiskGB: img.MinDiskGB,
			MinRAMMB:  img.MinRAMMB,
		})
	}
	return images
}
