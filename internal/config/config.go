// Package config loads viewrender settings with Viper from a YAML file,
// VIEWRENDER_ environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/goliatone/go-viewrender/pkg/aliases"
)

// EnvPrefix prefixes environment overrides: VIEWRENDER_SERVER_ADDR sets
// server.addr.
const EnvPrefix = "VIEWRENDER"

type Config struct {
	ViewPath   string            `mapstructure:"view_path"`
	Layout     string            `mapstructure:"layout"`
	Locale     string            `mapstructure:"locale"`
	LogLevel   string            `mapstructure:"log_level"`
	Aliases    map[string]string `mapstructure:"aliases"`
	Templates  TemplatesConfig   `mapstructure:"templates"`
	Injections InjectionsConfig  `mapstructure:"injections"`
	I18n       I18nConfig        `mapstructure:"i18n"`
	Theme      ThemeConfig       `mapstructure:"theme"`
	Server     ServerConfig      `mapstructure:"server"`
}

type TemplatesConfig struct {
	Dir               string         `mapstructure:"dir"`
	Extension         string         `mapstructure:"extension"`
	FallbackExtension string         `mapstructure:"fallback_extension"`
	SourceLocale      string         `mapstructure:"source_locale"`
	Globals           map[string]any `mapstructure:"globals"`
}

type InjectionsConfig struct {
	Static []string   `mapstructure:"static"`
	CSRF   CSRFConfig `mapstructure:"csrf"`
}

type CSRFConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ParameterName     string `mapstructure:"parameter_name"`
	MetaAttributeName string `mapstructure:"meta_attribute_name"`
	CookieName        string `mapstructure:"cookie_name"`
}

type I18nConfig struct {
	Dir      string `mapstructure:"dir"`
	Fallback string `mapstructure:"fallback"`
}

type ThemeConfig struct {
	Manifest string `mapstructure:"manifest"`
	Variant  string `mapstructure:"variant"`
}

type ServerConfig struct {
	Addr  string `mapstructure:"addr"`
	Watch bool   `mapstructure:"watch"`
}

// Defaults returns the built-in settings, keyed by config path.
func Defaults() map[string]any {
	return map[string]any{
		"view_path": "@views",
		"layout":    "@layout/main",
		"log_level": "info",
		"aliases": map[string]string{
			"@root":   ".",
			"@views":  "@root/views",
			"@layout": "@views/layouts",
		},
		"templates.dir":                       ".",
		"templates.extension":                 "tpl",
		"templates.fallback_extension":        "html",
		"templates.source_locale":             "en",
		"injections.csrf.enabled":             false,
		"injections.csrf.parameter_name":      "csrf",
		"injections.csrf.meta_attribute_name": "csrf",
		"injections.csrf.cookie_name":         "_csrf",
		"i18n.fallback":                       "en",
		"server.addr":                         ":8080",
		"server.watch":                        false,
	}
}

// New returns a Viper instance with defaults, environment binding and, when
// file is not empty, the config file set.
func New(file string) *viper.Viper {
	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("viewrender")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	return v
}

// BindFlags binds the known command-line flags in flags to their config
// keys. Unknown flags are ignored.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(flag *pflag.Flag) {
		key, ok := flagKeys[flag.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, flag)
	})
	return bindErr
}

var flagKeys = map[string]string{
	"view-path":     "view_path",
	"layout":        "layout",
	"locale":        "locale",
	"log-level":     "log_level",
	"templates":     "templates.dir",
	"addr":          "server.addr",
	"watch":         "server.watch",
	"theme":         "theme.manifest",
	"theme-variant": "theme.variant",
	"i18n":          "i18n.dir",
	"csrf":          "injections.csrf.enabled",
}

// Load reads the config file when present and decodes the settings. A
// missing default config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and that every alias reference
// resolves.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ViewPath) == "" {
		return fmt.Errorf("config: view_path must not be empty")
	}
	if c.Templates.Extension == "" {
		return fmt.Errorf("config: templates.extension must not be empty")
	}
	table, err := aliases.New(c.Aliases)
	if err != nil {
		return fmt.Errorf("config: aliases: %w", err)
	}
	for key, value := range map[string]string{"view_path": c.ViewPath, "layout": c.Layout} {
		if _, err := table.Get(value); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
	}
	return nil
}

// AliasTable builds the alias resolver described by the config.
func (c *Config) AliasTable() (*aliases.Aliases, error) {
	return aliases.New(c.Aliases)
}
