package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hemtjan.st/mbusmeter/mbus"
)

type Err string

func (e Err) Error() string {
	return string(e)
}

const (
	ErrConfiguration = Err("invalid configuration")

	DefaultConfigFile = "/etc/mbusmeter.toml"
	envPrefix         = "MBUSMETER"
)

type Config struct {
	Device       string        `mapstructure:"device"`
	Baud         int           `mapstructure:"baud"`
	Key          string        `mapstructure:"key"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	LogLevel     string        `mapstructure:"log_level"`
	// Listen is the HTTP address, the server is disabled when empty
	Listen string `mapstructure:"listen"`
	MQTT   bool   `mapstructure:"mqtt"`
	Topic  string `mapstructure:"topic"`
	Name   string `mapstructure:"name"`
	// Replay reads a captured stream from this file instead of the device
	Replay string `mapstructure:"replay"`

	// File is the config file that was read, if any
	File string `mapstructure:"-"`
}

// Defaults as written to a new config file
var defaults = map[string]interface{}{
	"device":        "/dev/ttyUSB0",
	"baud":          115200,
	"key":           "",
	"poll_interval": "100ms",
	"log_level":     "info",
	"listen":        "",
	"mqtt":          true,
	"topic":         "powerMeter/house",
	"name":          "House Power Meter",
	"replay":        "",
}

// Load reads the configuration from flags, MBUSMETER_* environment variables
// and the TOML config file, in that order of precedence. Flags registered on
// goFlags, if any, are parsed along with ours.
func Load(args []string, goFlags *flag.FlagSet) (*Config, error) {
	fs := pflag.NewFlagSet("mbusmeter", pflag.ContinueOnError)
	configFile := fs.StringP("config", "c", DefaultConfigFile, "Config file (TOML)")
	fs.StringP("device", "d", "", "Serial device")
	fs.IntP("baud", "b", 0, "Baud rate of serial port")
	fs.StringP("key", "k", "", "Decryption key, 32 or 64 hex digits")
	fs.Duration("poll_interval", 0, "Wait after a read without data")
	fs.StringP("log_level", "l", "", "Log level (debug, info, warn, error)")
	fs.String("listen", "", "Serve the latest reading over HTTP on this address")
	fs.Bool("mqtt", false, "Publish to hemtjanst over MQTT")
	fs.String("topic", "", "Topic of hemtjanst device")
	fs.String("name", "", "Name of hemtjanst device")
	fs.String("replay", "", "Replay a captured hex stream instead of reading the device")
	if goFlags != nil {
		fs.AddGoFlagSet(goFlags)
	}
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
		if err := v.BindPFlag(k, fs.Lookup(k)); err != nil {
			return nil, err
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	path := *configFile
	if !fs.Changed("config") {
		if env := os.Getenv(envPrefix + "_CONFIG"); env != "" {
			path = env
		}
	}
	explicit := fs.Changed("config") || path != DefaultConfigFile

	file, err := readConfigFile(v, path, explicit)
	if err != nil {
		return nil, err
	}

	cfg := &Config{File: file}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string, explicit bool) (string, error) {
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if !explicit {
			return "", nil
		}
		// Create default if not exists
		if err := WriteDefault(path); err != nil {
			return "", err
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", ErrConfiguration, path, err)
	}
	return path, nil
}

// WriteDefault writes a config file holding the default settings.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(defaults)
}

func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Key) == "" {
		problems = append(problems, "key is required")
	} else if _, err := mbus.ParseKey(c.Key); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Replay == "" && c.Device == "" {
		problems = append(problems, "device is required")
	}
	if c.Baud <= 0 {
		problems = append(problems, fmt.Sprintf("baud must be positive, got %d", c.Baud))
	}
	if c.PollInterval <= 0 {
		problems = append(problems, fmt.Sprintf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if c.MQTT && c.Topic == "" {
		problems = append(problems, "topic is required with mqtt")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}
