package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultSendTemplate     = "Hello {student_name}, your package round {round} ({total_hours} hours) is complete. Amount due: {amount} {currency}. {payment_link}"
	DefaultReminderTemplate = "Reminder for {student_name}: package round {round} still has {unpaid_amount} {currency} unpaid. {payment_link}"
)

// LifecycleConfig holds runtime-tunable settings that can change without a restart.
type LifecycleConfig struct {
	Notifications NotificationConfig `mapstructure:"notifications"`
	Salary        SalaryConfig       `mapstructure:"salary"`
}

type NotificationConfig struct {
	SendTemplate     string `mapstructure:"sendTemplate"`
	ReminderTemplate string `mapstructure:"reminderTemplate"`
	BulkConcurrency  int    `mapstructure:"bulkConcurrency"`
	BulkMaxItems     int    `mapstructure:"bulkMaxItems"`
}

type SalaryConfig struct {
	DisplayRates []DisplayRate `mapstructure:"displayRates"`
}

// DisplayRate converts amounts tagged From into To for presentation only.
type DisplayRate struct {
	From string  `mapstructure:"from"`
	To   string  `mapstructure:"to"`
	Rate float64 `mapstructure:"rate"`
}

func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		Notifications: NotificationConfig{
			SendTemplate:     DefaultSendTemplate,
			ReminderTemplate: DefaultReminderTemplate,
			BulkConcurrency:  5,
			BulkMaxItems:     200,
		},
		Salary: SalaryConfig{
			DisplayRates: []DisplayRate{
				{From: "USD", To: "EGP", Rate: 30},
			},
		},
	}
}

// RateFor returns the configured display rate between two currencies.
func (c SalaryConfig) RateFor(from, to string) (float64, bool) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return 0, false
	}
	if from == to {
		return 1, true
	}
	for _, r := range c.DisplayRates {
		if strings.EqualFold(r.From, from) && strings.EqualFold(r.To, to) && r.Rate > 0 {
			return r.Rate, true
		}
	}
	return 0, false
}

type LifecycleConfigHolder struct {
	current atomic.Value // holds LifecycleConfig
}

// NewStaticLifecycleConfigHolder wraps a fixed configuration.
func NewStaticLifecycleConfigHolder(cfg LifecycleConfig) *LifecycleConfigHolder {
	holder := &LifecycleConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewLifecycleConfigHolder(cfg Config, log *zap.Logger) (*LifecycleConfigHolder, error) {
	log = log.Named("config.lifecycle")
	v := viper.New()

	if path := strings.TrimSpace(cfg.LifecycleConfigPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lifecycle")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/elmcorner")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ELMCORNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLifecycleConfig()
	v.SetDefault("lifecycle.notifications.sendTemplate", defaults.Notifications.SendTemplate)
	v.SetDefault("lifecycle.notifications.reminderTemplate", defaults.Notifications.ReminderTemplate)
	v.SetDefault("lifecycle.notifications.bulkConcurrency", defaults.Notifications.BulkConcurrency)
	v.SetDefault("lifecycle.notifications.bulkMaxItems", defaults.Notifications.BulkMaxItems)
	v.SetDefault("lifecycle.salary.displayRates", defaults.Salary.DisplayRates)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read lifecycle config: %w", err)
		}
		fileLoaded = false
	}

	var lc LifecycleConfig
	if err := v.UnmarshalKey("lifecycle", &lc); err != nil {
		return nil, err
	}
	if err := validateLifecycleConfig(lc); err != nil {
		return nil, err
	}

	holder := NewStaticLifecycleConfigHolder(lc)
	if !fileLoaded {
		log.Info("lifecycle config file not found, using defaults")
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LifecycleConfig
		if err := v.UnmarshalKey("lifecycle", &updated); err != nil {
			log.Warn("lifecycle config reload failed", zap.Error(err))
			return
		}
		if err := validateLifecycleConfig(updated); err != nil {
			log.Warn("invalid lifecycle config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("lifecycle config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *LifecycleConfigHolder) Get() LifecycleConfig {
	if h == nil {
		return DefaultLifecycleConfig()
	}
	cfg, ok := h.current.Load().(LifecycleConfig)
	if !ok {
		return DefaultLifecycleConfig()
	}
	return cfg
}

func validateLifecycleConfig(cfg LifecycleConfig) error {
	if strings.TrimSpace(cfg.Notifications.SendTemplate) == "" {
		return errors.New("lifecycle.notifications.sendTemplate cannot be empty")
	}
	if strings.TrimSpace(cfg.Notifications.ReminderTemplate) == "" {
		return errors.New("lifecycle.notifications.reminderTemplate cannot be empty")
	}
	if cfg.Notifications.BulkConcurrency <= 0 {
		return errors.New("lifecycle.notifications.bulkConcurrency must be positive")
	}
	for _, r := range cfg.Salary.DisplayRates {
		if r.Rate <= 0 {
			return fmt.Errorf("lifecycle.salary.displayRates %s->%s must be positive", r.From, r.To)
		}
	}
	return nil
}
