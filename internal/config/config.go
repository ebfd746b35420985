// Package config holds the daemon configuration: a TOML file with defaults,
// overridden by flags in main, plus direct key injection for one-off
// overrides (-set section.key=value).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	Service ServiceConfig `toml:"service"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServiceConfig carries the store locators and maintenance parameters.
// Ages and intervals are in seconds.
type ServiceConfig struct {
	GreyDB                   string   `toml:"grey_db"`
	AWLDB                    string   `toml:"awl_db"`
	HashGreyDB               bool     `toml:"hash_grey_db"`
	GreyMaxAge               int      `toml:"grey_max_age"`
	AWLMaxAge                int      `toml:"awl_max_age"`
	MaintenanceInterval      int      `toml:"maintenance_interval"`
	GreyDBMaintenanceDisable bool     `toml:"grey_db_maintenance_disable"`
	AWLDBMaintenanceDisable  bool     `toml:"awl_db_maintenance_disable"`
	WLSources                []string `toml:"wl_sources"`
	AllowWLRegex             bool     `toml:"allow_wl_regex"`
	IPv4Mask                 int      `toml:"ipv4_mask"`
	IPv6Mask                 int      `toml:"ipv6_mask"`
}

// Defaults returns a Config with the stock daemon parameters. The greylist
// keeps entries for 35 days; maintenance runs hourly.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Service: ServiceConfig{
			GreyDB:              "embedded:///var/db/greyd/greylist.db",
			AWLDB:               "embedded:///var/db/greyd/autowl.db",
			HashGreyDB:          true,
			GreyMaxAge:          3024000,
			AWLMaxAge:           3024000,
			MaintenanceInterval: 3600,
			IPv4Mask:            24,
			IPv6Mask:            48,
		},
	}
}

// Load reads a TOML config file over the defaults. If path is empty the
// default location is tried and silently skipped when absent.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = "/usr/local/etc/greyd/greyd.toml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Set injects a single assignment of the form section.key=value. Unknown
// keys and unparsable values are explicit errors, never silently dropped:
// a typo in a -set flag must stop startup, not run the daemon with a
// default the operator thinks they overrode.
func (c *Config) Set(assignment string) error {
	key, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("config injection %q: want section.key=value", assignment)
	}
	bad := func(err error) error {
		return fmt.Errorf("config injection %q: %w", assignment, err)
	}
	switch key {
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	case "service.grey_db":
		c.Service.GreyDB = value
	case "service.awl_db":
		c.Service.AWLDB = value
	case "service.hash_grey_db":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return bad(err)
		}
		c.Service.HashGreyDB = b
	case "service.grey_max_age":
		n, err := strconv.Atoi(value)
		if err != nil {
			return bad(err)
		}
		c.Service.GreyMaxAge = n
	case "service.awl_max_age":
		n, err := strconv.Atoi(value)
		if err != nil {
			return bad(err)
		}
		c.Service.AWLMaxAge = n
	case "service.maintenance_interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return bad(err)
		}
		c.Service.MaintenanceInterval = n
	case "service.grey_db_maintenance_disable":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return bad(err)
		}
		c.Service.GreyDBMaintenanceDisable = b
	case "service.awl_db_maintenance_disable":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return bad(err)
		}
		c.Service.AWLDBMaintenanceDisable = b
	case "service.wl_sources":
		c.Service.WLSources = strings.Split(value, ",")
	case "service.allow_wl_regex":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return bad(err)
		}
		c.Service.AllowWLRegex = b
	case "service.ipv4_mask":
		n, err := strconv.Atoi(value)
		if err != nil {
			return bad(err)
		}
		c.Service.IPv4Mask = n
	case "service.ipv6_mask":
		n, err := strconv.Atoi(value)
		if err != nil {
			return bad(err)
		}
		c.Service.IPv6Mask = n
	default:
		return fmt.Errorf("config injection %q: unknown key %q", assignment, key)
	}
	return nil
}

// Validate checks value ranges. Locator schemes are not checked here, the
// store selector owns that.
func (c *Config) Validate() error {
	if c.Service.GreyDB == "" {
		return fmt.Errorf("service.grey_db: locator must not be empty")
	}
	if c.Service.AWLDB == "" {
		return fmt.Errorf("service.awl_db: locator must not be empty")
	}
	if c.Service.GreyMaxAge <= 0 {
		return fmt.Errorf("service.grey_max_age: got %d, want > 0", c.Service.GreyMaxAge)
	}
	if c.Service.AWLMaxAge <= 0 {
		return fmt.Errorf("service.awl_max_age: got %d, want > 0", c.Service.AWLMaxAge)
	}
	if c.Service.MaintenanceInterval <= 0 {
		return fmt.Errorf("service.maintenance_interval: got %d, want > 0", c.Service.MaintenanceInterval)
	}
	if c.Service.IPv4Mask < 0 || c.Service.IPv4Mask > 32 {
		return fmt.Errorf("service.ipv4_mask: got %d, want 0-32", c.Service.IPv4Mask)
	}
	if c.Service.IPv6Mask < 0 || c.Service.IPv6Mask > 128 {
		return fmt.Errorf("service.ipv6_mask: got %d, want 0-128", c.Service.IPv6Mask)
	}
	return nil
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
