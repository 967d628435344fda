package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/art-injener/satprop/internal/norad"
)

const (
	DefaultUpdateInterval = 6 * time.Hour
	DefaultCacheDir       = "data/tle_cache"

	// DefaultMaxTLEAgeDays — возраст элементов, после которого они считаются устаревшими.
	DefaultMaxTLEAgeDays = 7.0
)

// DefaultGroups — группы Celestrak, загружаемые по умолчанию.
var DefaultGroups = []string{"stations", "amateur", "cubesat"}

// CatalogConfig содержит настройки каталога.
type CatalogConfig struct {
	// Groups — группы Celestrak. Пустой список отключает загрузку из сети,
	// если заданы Files.
	Groups []string `mapstructure:"groups"`

	// Files — локальные файлы TLE, загружаемые в группу с именем файла.
	Files []string `mapstructure:"files"`

	UpdateInterval time.Duration `mapstructure:"update_interval"`
	CacheDir       string        `mapstructure:"cache_dir"`
	MaxTLEAgeDays  float64       `mapstructure:"max_tle_age_days"`

	// Family — семейство моделей: "sgp4" или "sgp8".
	Family string `mapstructure:"family"`

	// Gravity — набор констант: "wgs72", "wgs84" или "report3".
	Gravity string `mapstructure:"gravity"`

	// MaxResonanceSteps — предел шагов интегратора резонанса за вызов; 0 — по умолчанию.
	MaxResonanceSteps int `mapstructure:"max_resonance_steps"`
}

// DefaultCatalogConfig возвращает конфигурацию по умолчанию.
func DefaultCatalogConfig() *CatalogConfig {
	return &CatalogConfig{
		Groups:         DefaultGroups,
		UpdateInterval: DefaultUpdateInterval,
		CacheDir:       DefaultCacheDir,
		MaxTLEAgeDays:  DefaultMaxTLEAgeDays,
		Family:         norad.FamilySGP4.String(),
		Gravity:        norad.GravityWGS72.Name,
	}
}

// Validate заполняет пропущенные значения и проверяет группы, семейство
// и набор констант.
func (c *CatalogConfig) Validate() error {
	if c.UpdateInterval < time.Minute {
		c.UpdateInterval = DefaultUpdateInterval
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.MaxTLEAgeDays <= 0 {
		c.MaxTLEAgeDays = DefaultMaxTLEAgeDays
	}
	if len(c.Groups) == 0 && len(c.Files) == 0 {
		c.Groups = DefaultGroups
	}
	if c.Gravity == "" {
		c.Gravity = norad.GravityWGS72.Name
	}
	if c.MaxResonanceSteps < 0 {
		return fmt.Errorf("max_resonance_steps must be non-negative, got %d", c.MaxResonanceSteps)
	}

	var invalid []string
	for _, g := range c.Groups {
		if !IsValidGroup(g) {
			invalid = append(invalid, g)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("unknown TLE groups: %s (available: %s)",
			strings.Join(invalid, ", "),
			strings.Join(AvailableGroupNames(), ", "),
		)
	}

	_, err := c.PropagatorOptions()

	return err
}

// PropagatorOptions переводит настройки модели в опции Propagator.
func (c *CatalogConfig) PropagatorOptions() ([]PropagatorOption, error) {
	family, err := norad.ParseFamily(c.Family)
	if err != nil {
		return nil, err
	}

	gravity, ok := norad.GravityByName(strings.ToLower(c.Gravity))
	if !ok {
		return nil, fmt.Errorf("unknown gravity model %q", c.Gravity)
	}

	opts := []PropagatorOption{WithFamily(family), WithGravity(gravity)}
	if c.MaxResonanceSteps > 0 {
		opts = append(opts, WithResonanceStepLimit(c.MaxResonanceSteps))
	}

	return opts, nil
}
