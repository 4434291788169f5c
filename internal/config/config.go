// Package config loads bridge settings from thermal-bridge.yaml,
// THERMAL_BRIDGE_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thereceipt/thermal-bridge/internal/printer"
	"github.com/thereceipt/thermal-bridge/internal/sdk"
)

// Printer drivers
const (
	DriverSimulate = "simulate"
	DriverUSB      = "usb"
	DriverSerial   = "serial"
	DriverNetwork  = "network"
)

// Battery sources
const (
	BatterySysfs = "sysfs"
	BatteryPush  = "push"
	BatteryNone  = "none"
)

// Config is the complete bridge configuration
type Config struct {
	Server struct {
		Address         string        `mapstructure:"address"`
		ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	} `mapstructure:"server"`

	Printer struct {
		Driver string `mapstructure:"driver"`
		USB    struct {
			VID int `mapstructure:"vid"`
			PID int `mapstructure:"pid"`
		} `mapstructure:"usb"`
		Serial struct {
			Device string `mapstructure:"device"`
			Baud   int    `mapstructure:"baud"`
		} `mapstructure:"serial"`
		Network struct {
			Host string `mapstructure:"host"`
			Port int    `mapstructure:"port"`
		} `mapstructure:"network"`
		Gray       int    `mapstructure:"gray"`
		PaperWidth int    `mapstructure:"paper_width"`
		PreviewDir string `mapstructure:"preview_dir"`
		Font       string `mapstructure:"font"`
	} `mapstructure:"printer"`

	Battery struct {
		Source    string        `mapstructure:"source"`
		SysfsPath string        `mapstructure:"sysfs_path"`
		Interval  time.Duration `mapstructure:"interval"`
	} `mapstructure:"battery"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		File   string `mapstructure:"file"`
	} `mapstructure:"log"`

	Sentry struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"sentry"`

	TUI bool `mapstructure:"tui"`

	// File is the config file that was read, if any
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":12212")
	v.SetDefault("server.response_timeout", 30*time.Second)
	v.SetDefault("printer.driver", DriverSimulate)
	v.SetDefault("printer.serial.baud", 9600)
	v.SetDefault("printer.network.port", 9100)
	v.SetDefault("printer.gray", 5)
	v.SetDefault("printer.paper_width", 384)
	v.SetDefault("battery.source", BatterySysfs)
	v.SetDefault("battery.sysfs_path", "/sys/class/power_supply")
	v.SetDefault("battery.interval", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tui", false)
}

// Flags returns the command line flags Load understands
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("thermal-bridge", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "config file (default ./thermal-bridge.yaml)")
	fs.StringP("address", "a", "", "listen address")
	fs.StringP("driver", "d", "", "printer driver: simulate, usb, serial or network")
	fs.String("serial-device", "", "serial device for the serial driver")
	fs.String("host", "", "printer host for the network driver")
	fs.String("preview-dir", "", "write simulated rolls as PNG files to this directory")
	fs.String("battery", "", "battery source: sysfs, push or none")
	fs.StringP("log-level", "l", "", "log level: debug, info, warn or error")
	fs.Bool("tui", false, "run the terminal dashboard")
	return fs
}

var flagKeys = map[string]string{
	"address":       "server.address",
	"driver":        "printer.driver",
	"serial-device": "printer.serial.device",
	"host":          "printer.network.host",
	"preview-dir":   "printer.preview_dir",
	"battery":       "battery.source",
	"log-level":     "log.level",
	"tui":           "tui",
}

// Load parses args and reads the configuration. The returned viper instance
// can be passed to Watch.
func Load(args []string) (*Config, *viper.Viper, error) {
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("THERMAL_BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("thermal-bridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/thermal-bridge")
		v.AddConfigPath("/etc/thermal-bridge")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings
func (c *Config) Validate() error {
	switch c.Printer.Driver {
	case DriverSimulate, DriverUSB, DriverSerial, DriverNetwork:
	default:
		return fmt.Errorf("unknown printer driver %q", c.Printer.Driver)
	}

	switch c.Battery.Source {
	case BatterySysfs, BatteryPush, BatteryNone:
	default:
		return fmt.Errorf("unknown battery source %q", c.Battery.Source)
	}

	if c.Printer.Driver == DriverSerial && c.Printer.Serial.Device == "" {
		return errors.New("serial driver needs printer.serial.device")
	}
	if c.Printer.Driver == DriverNetwork && c.Printer.Network.Host == "" {
		return errors.New("network driver needs printer.network.host")
	}
	if c.Battery.Interval <= 0 {
		return errors.New("battery.interval must be positive")
	}
	return nil
}

// Transport describes how to reach the configured hardware printer
func (c *Config) Transport() sdk.Transport {
	return sdk.Transport{
		Type:   c.Printer.Driver,
		VID:    uint16(c.Printer.USB.VID),
		PID:    uint16(c.Printer.USB.PID),
		Device: c.Printer.Serial.Device,
		Baud:   c.Printer.Serial.Baud,
		Host:   c.Printer.Network.Host,
		Port:   c.Printer.Network.Port,
	}
}

// Adapter returns the print job defaults
func (c *Config) Adapter() printer.Config {
	cfg := printer.DefaultConfig()
	cfg.Gray = c.Printer.Gray
	cfg.PaperWidth = c.Printer.PaperWidth
	return cfg
}

// Watch calls fn with the new configuration whenever the config file
// changes. Invalid edits are reported to onError and otherwise ignored.
func Watch(v *viper.Viper, fn func(*Config), onError func(error)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		fn(cfg)
	})
	v.WatchConfig()
}
