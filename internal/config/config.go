package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lucasb-eyer/go-colorful"
)

// Backends are the accepted values of Config.Backend. "auto" picks the
// first backend that works on the current platform.
var Backends = []string{"auto", "networkmanager", "iwd", "nl80211", "darwin", "mock"}

// Config is the optional settings file.
type Config struct {
	Backend      string        `toml:"backend"`
	ScanInterval time.Duration `toml:"scan_interval"`
	Workers      int           `toml:"workers"`
	Colors       Colors        `toml:"colors"`
}

// Colors are the endpoints of the signal strength gradient in `list`.
type Colors struct {
	SignalHigh string `toml:"signal_high"`
	SignalLow  string `toml:"signal_low"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Backend:      "auto",
		ScanInterval: 60 * time.Second,
		Workers:      4,
		Colors: Colors{
			SignalHigh: "#00FF00",
			SignalLow:  "#BC3C00",
		},
	}
}

// DefaultPath is simplewifi/config.toml under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "simplewifi", "config.toml")
}

// Load reads the settings file at path over the defaults. Keys missing from
// the file keep their default. A missing file is only an error when
// required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, err
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return cfg, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks that every setting is in range.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(Backends, c.Backend) {
		errs = append(errs, fmt.Errorf("backend %q: must be one of %s", c.Backend, strings.Join(Backends, ", ")))
	}
	if c.ScanInterval < 0 {
		errs = append(errs, fmt.Errorf("scan_interval %s: must not be negative", c.ScanInterval))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers %d: must be at least 1", c.Workers))
	}
	for name, hex := range map[string]string{"signal_high": c.Colors.SignalHigh, "signal_low": c.Colors.SignalLow} {
		if _, err := colorful.Hex(hex); err != nil {
			errs = append(errs, fmt.Errorf("colors.%s %q: %w", name, hex, err))
		}
	}
	return errors.Join(errs...)
}
