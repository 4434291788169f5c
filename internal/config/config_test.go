package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "thermal-bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, _, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":12212", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ResponseTimeout)
	assert.Equal(t, DriverSimulate, cfg.Printer.Driver)
	assert.Equal(t, 5, cfg.Printer.Gray)
	assert.Equal(t, 384, cfg.Printer.PaperWidth)
	assert.Equal(t, BatterySysfs, cfg.Battery.Source)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.TUI)
	assert.Empty(t, cfg.File)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9000"
  response_timeout: 5s
printer:
  driver: network
  network:
    host: 10.0.0.7
  gray: 8
  paper_width: 576
battery:
  source: push
log:
  level: warn
`)
	t.Setenv("THERMAL_BRIDGE_LOG_LEVEL", "error")

	cfg, _, err := Load([]string{"--config", path, "--address", ":9100"})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, ":9100", cfg.Server.Address, "flag beats file")
	assert.Equal(t, 5*time.Second, cfg.Server.ResponseTimeout)
	assert.Equal(t, "error", cfg.Log.Level, "env beats file")
	assert.Equal(t, BatteryPush, cfg.Battery.Source)

	transport := cfg.Transport()
	assert.Equal(t, "network", transport.Type)
	assert.Equal(t, "10.0.0.7", transport.Host)
	assert.Equal(t, 9100, transport.Port)

	adapter := cfg.Adapter()
	assert.Equal(t, 8, adapter.Gray)
	assert.Equal(t, 576, adapter.PaperWidth)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"driver":         "printer:\n  driver: bluetooth\n",
		"battery source": "battery:\n  source: solar\n",
		"serial device":  "printer:\n  driver: serial\n",
		"network host":   "printer:\n  driver: network\n",
		"interval":       "battery:\n  interval: 0s\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Load([]string{"--config", writeConfig(t, content)})
			assert.Error(t, err)
		})
	}
}

func TestLoad_BrokenFile(t *testing.T) {
	_, _, err := Load([]string{"--config", writeConfig(t, "server: [\n")})
	assert.Error(t, err)
}

func TestLoad_UnknownFlag(t *testing.T) {
	_, _, err := Load([]string{"--bogus"})
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	_, v, err := Load([]string{"--config", path})
	require.NoError(t, err)

	levels := make(chan string, 16)
	Watch(v, func(cfg *Config) {
		select {
		case levels <- cfg.Log.Level:
		default:
		}
	}, nil)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	// a write may be seen half done, so wait for the final content
	timeout := time.After(5 * time.Second)
	for {
		select {
		case level := <-levels:
			if level == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("config change not seen")
		}
	}
}
