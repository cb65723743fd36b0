package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlannerConfig tunes the scheduling and reflection heuristics without a redeploy.
type PlannerConfig struct {
	// PaceTolerance is the band around the ideal daily spend that still
	// counts as "on track" (0.20 = 20%).
	PaceTolerance float64 `mapstructure:"paceTolerance"`
	// DefaultLeadDays is used when a container does not set its own
	// auto-create lead time.
	DefaultLeadDays int `mapstructure:"defaultLeadDays"`
	// ReminderOffsets are the day offsets before a due date that deserve a
	// reminder (delivery is owned by the host application).
	ReminderOffsets []int `mapstructure:"reminderOffsets"`
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		PaceTolerance:   0.20,
		DefaultLeadDays: 3,
		ReminderOffsets: []int{7, 3, 1},
	}
}

type PlannerConfigHolder struct {
	current atomic.Value // holds PlannerConfig
}

func NewPlannerConfigHolder() (*PlannerConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("planner")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/moneta/config")
	v.AddConfigPath("/etc/moneta")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MONETA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPlannerConfig()
		v.SetDefault("planner.paceTolerance", defaults.PaceTolerance)
		v.SetDefault("planner.defaultLeadDays", defaults.DefaultLeadDays)
		v.SetDefault("planner.reminderOffsets", defaults.ReminderOffsets)
	}

	var cfg PlannerConfig
	if err := v.UnmarshalKey("planner", &cfg); err != nil {
		return nil, err
	}
	if err := validatePlannerConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PlannerConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlannerConfig
		if err := v.UnmarshalKey("planner", &updated); err != nil {
			log.Printf("[planner-config] reload failed: %v", err)
			return
		}
		if err := validatePlannerConfig(updated); err != nil {
			log.Printf("[planner-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[planner-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPlannerConfigHolder wraps a fixed config with no file watching.
func NewStaticPlannerConfigHolder(cfg PlannerConfig) *PlannerConfigHolder {
	holder := &PlannerConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PlannerConfigHolder) Get() PlannerConfig {
	return h.current.Load().(PlannerConfig)
}

func validatePlannerConfig(cfg PlannerConfig) error {
	if cfg.PaceTolerance < 0 || cfg.PaceTolerance > 1 {
		return errors.New("planner: paceTolerance must be within [0, 1]")
	}
	if cfg.DefaultLeadDays < 0 {
		return errors.New("planner: defaultLeadDays must not be negative")
	}
	for _, offset := range cfg.ReminderOffsets {
		if offset < 0 {
			return errors.New("planner: reminderOffsets must not be negative")
		}
	}
	return nil
}
