package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/invoicedesk/pkg/money"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DisplayConfig controls presentation-only settings: currency symbols and
// labels, and how many days before the due date an invoice is "due soon".
type DisplayConfig struct {
	Currencies  []money.CurrencyInfo `mapstructure:"currencies"`
	DueSoonDays int                  `mapstructure:"dueSoonDays"`
}

func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		Currencies:  money.Currencies(),
		DueSoonDays: 7,
	}
}

// Currency returns display info for code, falling back to the built-in catalog.
func (c DisplayConfig) Currency(code money.Currency) money.CurrencyInfo {
	for _, info := range c.Currencies {
		if info.Code == code {
			return info
		}
	}
	for _, info := range money.Currencies() {
		if info.Code == code {
			return info
		}
	}
	return money.CurrencyInfo{Code: code, Symbol: string(code), Label: string(code)}
}

// Catalog returns every supported currency with overrides applied.
func (c DisplayConfig) Catalog() []money.CurrencyInfo {
	base := money.Currencies()
	out := make([]money.CurrencyInfo, 0, len(base))
	for _, info := range base {
		out = append(out, c.Currency(info.Code))
	}
	return out
}

type DisplayConfigHolder struct {
	current atomic.Value // holds DisplayConfig
}

func NewDisplayConfigHolder(cfg Config, log *zap.Logger) (*DisplayConfigHolder, error) {
	paths := []string{"/etc/invoicedesk", "."}
	if cfg.DisplayConfigDir != "" {
		paths = append([]string{cfg.DisplayConfigDir}, paths...)
	}
	return newDisplayConfigHolder(log, paths...)
}

func newDisplayConfigHolder(log *zap.Logger, paths ...string) (*DisplayConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("display.config")

	v := viper.New()
	v.SetConfigName("display")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("INVOICEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDisplayConfig()
	v.SetDefault("display.dueSoonDays", defaults.DueSoonDays)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeDisplayConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &DisplayConfigHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeDisplayConfig(v)
			if err != nil {
				log.Warn("reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *DisplayConfigHolder) Get() DisplayConfig {
	if h == nil {
		return DefaultDisplayConfig()
	}
	return h.current.Load().(DisplayConfig)
}

func decodeDisplayConfig(v *viper.Viper) (DisplayConfig, error) {
	var cfg DisplayConfig
	if err := v.UnmarshalKey("display", &cfg); err != nil {
		return DisplayConfig{}, err
	}
	if err := validateDisplayConfig(cfg); err != nil {
		return DisplayConfig{}, err
	}
	return cfg, nil
}

func validateDisplayConfig(cfg DisplayConfig) error {
	if cfg.DueSoonDays < 0 {
		return errors.New("display.dueSoonDays cannot be negative")
	}
	for _, info := range cfg.Currencies {
		if !info.Code.Valid() {
			return fmt.Errorf("display.currencies: unsupported code %q", info.Code)
		}
		if strings.TrimSpace(info.Symbol) == "" {
			return fmt.Errorf("display.currencies: %s symbol is empty", info.Code)
		}
	}
	return nil
}
