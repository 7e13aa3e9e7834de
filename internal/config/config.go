package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Pipeline defaults
	DefaultStrategy string  `mapstructure:"default_strategy" yaml:"default_strategy"`
	DefaultMethod   string  `mapstructure:"default_method" yaml:"default_method"`
	Colormap        string  `mapstructure:"colormap" yaml:"colormap"`
	ChartWidthIn    float64 `mapstructure:"chart_width_in" yaml:"chart_width_in"`
	ChartHeightIn   float64 `mapstructure:"chart_height_in" yaml:"chart_height_in"`
	OutputDir       string  `mapstructure:"output_dir" yaml:"output_dir"`

	// HTTP server
	ServerAddr     string `mapstructure:"server_addr" yaml:"server_addr"`
	ServerLogLevel string `mapstructure:"server_log_level" yaml:"server_log_level"`
	MaxUploadMB    int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	SessionTTLMin  int    `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`

	// Image generation
	ImageAPIKey string `mapstructure:"image_api_key" yaml:"image_api_key"`
	ImageAPIURL string `mapstructure:"image_api_url" yaml:"image_api_url"`
	ImageStyle  string `mapstructure:"image_style" yaml:"image_style"`

	HTTPTimeoutSec int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
}

// Keys lists every settable key in display order.
var Keys = []string{
	"default_strategy", "default_method", "colormap", "chart_width_in", "chart_height_in",
	"output_dir", "server_addr", "server_log_level", "max_upload_mb", "session_ttl_min",
	"image_api_key", "image_api_url", "image_style", "http_timeout_sec",
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".boxheat"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.boxheat/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Defaults returns the built-in configuration.
func Defaults() *Global {
	return &Global{
		DefaultStrategy: "drop",
		DefaultMethod:   "pearson",
		Colormap:        "coolwarm",
		OutputDir:       "boxheat-out",
		ServerAddr:      "127.0.0.1:8080",
		ServerLogLevel:  "info",
		MaxUploadMB:     32,
		SessionTTLMin:   60,
		ImageAPIURL:     "https://clipdrop-api.co/text-to-image/v1",
		ImageStyle:      "Realistic",
		HTTPTimeoutSec:  60,
	}
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("BOXHEAT")
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("default_strategy", d.DefaultStrategy)
	v.SetDefault("default_method", d.DefaultMethod)
	v.SetDefault("colormap", d.Colormap)
	v.SetDefault("chart_width_in", d.ChartWidthIn)
	v.SetDefault("chart_height_in", d.ChartHeightIn)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("server_addr", d.ServerAddr)
	v.SetDefault("server_log_level", d.ServerLogLevel)
	v.SetDefault("max_upload_mb", d.MaxUploadMB)
	v.SetDefault("session_ttl_min", d.SessionTTLMin)
	v.SetDefault("image_api_key", d.ImageAPIKey)
	v.SetDefault("image_api_url", d.ImageAPIURL)
	v.SetDefault("image_style", d.ImageStyle)
	v.SetDefault("http_timeout_sec", d.HTTPTimeoutSec)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// a missing file is fine; a malformed one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Set assigns a key from its string form, validating numeric keys.
func (c *Global) Set(key, val string) error {
	switch key {
	case "default_strategy":
		c.DefaultStrategy = val
	case "default_method":
		c.DefaultMethod = strings.ToLower(val)
	case "colormap":
		c.Colormap = strings.ToLower(val)
	case "chart_width_in", "chart_height_in":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for %s: %v", key, val)
		}
		if key == "chart_width_in" {
			c.ChartWidthIn = f
		} else {
			c.ChartHeightIn = f
		}
	case "output_dir":
		c.OutputDir = val
	case "server_addr":
		c.ServerAddr = val
	case "server_log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error", "off":
			c.ServerLogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid server_log_level: %s (use debug|info|warn|error|off)", val)
		}
	case "max_upload_mb", "session_ttl_min", "http_timeout_sec":
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "max_upload_mb":
			c.MaxUploadMB = i
		case "session_ttl_min":
			c.SessionTTLMin = i
		default:
			c.HTTPTimeoutSec = i
		}
	case "image_api_key":
		c.ImageAPIKey = val
	case "image_api_url":
		c.ImageAPIURL = val
	case "image_style":
		c.ImageStyle = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Value returns the string form of key, or "" for unknown keys.
func (c *Global) Value(key string) string {
	switch key {
	case "default_strategy":
		return c.DefaultStrategy
	case "default_method":
		return c.DefaultMethod
	case "colormap":
		return c.Colormap
	case "chart_width_in":
		return strconv.FormatFloat(c.ChartWidthIn, 'f', -1, 64)
	case "chart_height_in":
		return strconv.FormatFloat(c.ChartHeightIn, 'f', -1, 64)
	case "output_dir":
		return c.OutputDir
	case "server_addr":
		return c.ServerAddr
	case "server_log_level":
		return c.ServerLogLevel
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB)
	case "session_ttl_min":
		return strconv.Itoa(c.SessionTTLMin)
	case "image_api_key":
		return c.ImageAPIKey
	case "image_api_url":
		return c.ImageAPIURL
	case "image_style":
		return c.ImageStyle
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec)
	}
	return ""
}
