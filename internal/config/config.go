package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var configDir string
var configFilePath string

// getConfigDir returns platform-specific config directory
func getConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "lingoloop", "notifier"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lingoloop", "notifier"), nil
}

func getSystemConfigPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{filepath.Join(os.Getenv("ProgramFiles"), "Lingoloop", "notifier", "config.toml")}
	}
	return []string{
		"/etc/lingoloop/notifier/config.toml",
		"/usr/local/etc/lingoloop/notifier/config.toml",
	}
}

// Init loads .env, system config, then user config (later sources override
// earlier ones). LINGOLOOP_* environment variables override everything.
func Init(configPath string) error {
	var err error
	if configPath != "" {
		configDir = filepath.Dir(configPath)
		configFilePath = configPath
	} else {
		configDir, err = getConfigDir()
		if err != nil {
			return err
		}
		configFilePath = filepath.Join(configDir, "config.toml")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	// .env is optional; real environment wins over it
	_ = godotenv.Load()

	viper.Reset()
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("LINGOLOOP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	for _, sysConfigPath := range getSystemConfigPaths() {
		if _, err := os.Stat(sysConfigPath); err == nil {
			viper.SetConfigFile(sysConfigPath)
			_ = viper.ReadInConfig()
			break
		}
	}

	if _, err := os.Stat(configFilePath); err == nil {
		viper.SetConfigFile(configFilePath)
		if err := viper.MergeInConfig(); err != nil {
			return err
		}
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:54321")
	viper.SetDefault("api.anon_key", "")
	viper.SetDefault("api.timeout", 30)
	viper.SetDefault("app.base_url", "https://lingoloop.app")

	viper.SetDefault("auth.access_token", "")

	viper.SetDefault("source", "realtime")
	viper.SetDefault("realtime.url", "ws://localhost:54321/realtime/v1/websocket")
	viper.SetDefault("realtime.heartbeat_ms", 25000)
	viper.SetDefault("realtime.connect_timeout_ms", 15000)
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.channel", "lingoloop_changes")

	viper.SetDefault("dedup.backend", "memory")
	viper.SetDefault("dedup.window_ms", 500)
	viper.SetDefault("dedup.ttl_ms", 5000)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")

	viper.SetDefault("toast.duration_ms", 4000)
	viper.SetDefault("notifications.page_size", 50)

	viper.SetDefault("metrics.addr", "")
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.endpoint", "localhost:4318")
	viper.SetDefault("telemetry.sampling_rate", 1.0)

	viper.SetDefault("output.format", "text")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", filepath.Join(configDir, "notifier.log"))
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetString returns a string configuration value
func GetString(key string) string {
	value := viper.GetString(key)
	if key == "log.file" {
		return expandPath(value)
	}
	return value
}

// GetInt returns an int configuration value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool configuration value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float configuration value
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetMillis reads an integer millisecond key as a duration
func GetMillis(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Millisecond
}

// Set overrides a value for the current process only
func Set(key string, value interface{}) {
	viper.Set(key, value)
}

// SetString sets a string value and persists the user config file
func SetString(key string, value string) error {
	viper.Set(key, value)
	return viper.WriteConfigAs(configFilePath)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	return configDir
}

// GetConfigFilePath returns the user config file path
func GetConfigFilePath() string {
	return configFilePath
}
