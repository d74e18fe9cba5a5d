package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"theta-panel/pkg/models"
)

// EnvFile is read before the environment is consulted. It may be absent.
var EnvFile = ".env"

type Config struct {
	Listen string
	Camera models.CameraConfig

	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	PollInterval    time.Duration
	PollAttempts    int

	LogLevel  string
	LogFormat string

	CORSOrigins    []string
	AllowedClients []string
}

var appConfig = defaults()

func defaults() Config {
	return Config{
		Listen:          "0.0.0.0:5000",
		Camera:          models.DefaultCameraConfig(),
		RequestTimeout:  10 * time.Second,
		DownloadTimeout: 30 * time.Second,
		PollInterval:    time.Second,
		PollAttempts:    30,
		LogLevel:        "info",
		LogFormat:       "console",
		CORSOrigins:     []string{"*"},
	}
}

// Load reads .env, the optional config file and PANEL_* variables, in
// increasing order of precedence. bind, when set, can attach further sources
// such as command-line flags.
func Load(cfgFile string, bind func(*viper.Viper) error) error {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", EnvFile, err)
	}

	v := viper.New()
	d := defaults()
	v.SetDefault("listen", d.Listen)
	v.SetDefault("camera.ip", d.Camera.IP)
	v.SetDefault("camera.port", d.Camera.Port)
	v.SetDefault("camera.mode", d.Camera.Mode)
	v.SetDefault("camera.username", "")
	v.SetDefault("camera.password", "")
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("download_timeout", d.DownloadTimeout)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("poll_attempts", d.PollAttempts)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("cors_origins", d.CORSOrigins)
	v.SetDefault("allowed_clients", []string{})

	v.SetEnvPrefix("PANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}
	if bind != nil {
		if err := bind(v); err != nil {
			return err
		}
	}

	cfg := Config{
		Listen: v.GetString("listen"),
		Camera: models.CameraConfig{
			IP:       v.GetString("camera.ip"),
			Port:     v.GetInt("camera.port"),
			Mode:     v.GetString("camera.mode"),
			Username: v.GetString("camera.username"),
			Password: v.GetString("camera.password"),
		},
		RequestTimeout:  v.GetDuration("request_timeout"),
		DownloadTimeout: v.GetDuration("download_timeout"),
		PollInterval:    v.GetDuration("poll_interval"),
		PollAttempts:    v.GetInt("poll_attempts"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		CORSOrigins:     splitList(v.GetStringSlice("cors_origins")),
		AllowedClients:  splitList(v.GetStringSlice("allowed_clients")),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	appConfig = cfg
	return nil
}

func Get() Config {
	return appConfig
}

func (c Config) Validate() error {
	switch c.Camera.Mode {
	case models.ModeAccessPoint, models.ModeClient:
	default:
		return fmt.Errorf("camera.mode must be %q or %q, got %q", models.ModeAccessPoint, models.ModeClient, c.Camera.Mode)
	}
	if c.Camera.IP == "" {
		return errors.New("camera.ip must be set")
	}
	if c.Camera.Port <= 0 || c.Camera.Port > 65535 {
		return fmt.Errorf("camera.port out of range: %d", c.Camera.Port)
	}
	if c.PollAttempts <= 0 {
		return fmt.Errorf("poll_attempts must be positive, got %d", c.PollAttempts)
	}
	if c.PollInterval <= 0 || c.RequestTimeout <= 0 || c.DownloadTimeout <= 0 {
		return errors.New("poll_interval, request_timeout and download_timeout must be positive")
	}
	return nil
}

// splitList accepts both real lists and comma separated strings.
func splitList(in []string) []string {
	out := []string{}
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
