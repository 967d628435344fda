package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/art-injener/satprop/internal/tracker"
)

const envPrefix = "SATPROP"

// Config — настройки сервиса. Значения берутся из файла (toml, yaml, json)
// и переопределяются переменными окружения SATPROP_*, например
// SATPROP_HTTP_ADDR или SATPROP_CATALOG_FAMILY.
type Config struct {
	Log      LogConfig             `mapstructure:"log"`
	HTTP     HTTPConfig            `mapstructure:"http"`
	Observer ObserverConfig        `mapstructure:"observer"`
	Catalog  tracker.CatalogConfig `mapstructure:"catalog"`
	Workers  int                   `mapstructure:"workers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json или text.
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ObserverConfig — пункт наблюдения в градусах и километрах.
type ObserverConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Lat     float64 `mapstructure:"lat"`
	Lon     float64 `mapstructure:"lon"`
	AltKm   float64 `mapstructure:"alt_km"`
}

func (o ObserverConfig) observer() *tracker.Observer {
	if !o.Enabled {
		return nil
	}

	return tracker.NewObserver(o.Lat, o.Lon, o.AltKm)
}

func setDefaults(v *viper.Viper) {
	def := tracker.DefaultCatalogConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.rate_limit", 20.0)
	v.SetDefault("http.rate_burst", 40)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("observer.enabled", false)
	v.SetDefault("observer.lat", 0.0)
	v.SetDefault("observer.lon", 0.0)
	v.SetDefault("observer.alt_km", 0.0)
	v.SetDefault("catalog.groups", def.Groups)
	v.SetDefault("catalog.files", []string{})
	v.SetDefault("catalog.update_interval", def.UpdateInterval)
	v.SetDefault("catalog.cache_dir", def.CacheDir)
	v.SetDefault("catalog.max_tle_age_days", def.MaxTLEAgeDays)
	v.SetDefault("catalog.family", def.Family)
	v.SetDefault("catalog.gravity", def.Gravity)
	v.SetDefault("catalog.max_resonance_steps", 0)
	v.SetDefault("workers", 0)
}

// loadConfig читает конфигурацию из path (если задан) и окружения.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	// Списки из окружения приходят одной строкой.
	if s := os.Getenv(envPrefix + "_CATALOG_GROUPS"); s != "" {
		cfg.Catalog.Groups = splitList(s)
	}
	if s := os.Getenv(envPrefix + "_CATALOG_FILES"); s != "" {
		cfg.Catalog.Files = splitList(s)
	}

	if err := cfg.Catalog.Validate(); err != nil {
		return nil, errors.Wrap(err, "catalog")
	}
	if cfg.Observer.Enabled && (cfg.Observer.Lat < -90 || cfg.Observer.Lat > 90) {
		return nil, errors.Errorf("observer latitude %.4f out of range", cfg.Observer.Lat)
	}

	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

func newLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
