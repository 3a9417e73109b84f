// Package config loads the application settings from a config file, the
// WHATSFLOW_* environment and bound command-line flags.
//
// Precedence is flags, then environment, then file, then the defaults declared
// in struct tags.
package config

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/whatsapp"
)

// EnvPrefix prefixes every environment variable, e.g. WHATSFLOW_HTTP_ADDR.
const EnvPrefix = "WHATSFLOW"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

type Config struct {
	Log      Log             `mapstructure:"log"`
	Flows    Flows           `mapstructure:"flows"`
	Store    Store           `mapstructure:"store"`
	Redis    Redis           `mapstructure:"redis"`
	SQLite   SQLite          `mapstructure:"sqlite"`
	HTTP     HTTP            `mapstructure:"http"`
	Engine   Engine          `mapstructure:"engine"`
	WhatsApp whatsapp.Config `mapstructure:"whatsapp" validate:"-"`
}

type Log struct {
	Level  string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" default:"text" validate:"oneof=text json"`
}

type Flows struct {
	Dir string `mapstructure:"dir" default:"flows" validate:"required"`
	// CacheTTL of 0 disables the flow cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl" default:"1m" validate:"gte=0"`
}

type Store struct {
	Driver string `mapstructure:"driver" default:"file" validate:"oneof=memory file redis"`
	// Path is the session directory of the file driver.
	Path string `mapstructure:"path" default:".whatsflow/sessions"`
	// EncryptionKey is a base64 AES-256 key encrypting bindings at rest.
	EncryptionKey string   `mapstructure:"encryption_key" validate:"omitempty,base64"`
	FallbackKeys  []string `mapstructure:"fallback_keys" validate:"dive,base64"`
}

type Redis struct {
	Addr     string        `mapstructure:"addr" default:"localhost:6379" validate:"required,hostname_port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	Prefix   string        `mapstructure:"prefix" default:"whatsflow:"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
	// Lock enables the distributed session lock.
	Lock    bool          `mapstructure:"lock" default:"true"`
	LockTTL time.Duration `mapstructure:"lock_ttl" default:"30s" validate:"gte=0"`
}

// SQLite holds the answer log database. An empty path keeps answers in memory.
type SQLite struct {
	Path string `mapstructure:"path"`
}

type HTTP struct {
	Addr    string `mapstructure:"addr" default:":8080" validate:"listen_addr"`
	Metrics bool   `mapstructure:"metrics" default:"true"`
	// WebhookFlow is started for WhatsApp contacts without an open session.
	// Empty disables the webhook.
	WebhookFlow string `mapstructure:"webhook_flow"`
}

type Engine struct {
	Checkpoint        string `mapstructure:"checkpoint" default:"before" validate:"oneof=before after"`
	ConditionFallback string `mapstructure:"condition_fallback" default:"unconditional" validate:"oneof=unconditional none"`
	StrictPersistence bool   `mapstructure:"strict_persistence"`
	MaxSteps          int    `mapstructure:"max_steps" default:"500" validate:"gte=1"`
	ConflictRetries   int    `mapstructure:"conflict_retries" default:"2" validate:"gte=0,lte=10"`
	// MaxInputLength bounds an answer in characters.
	MaxInputLength int `mapstructure:"max_input_length" default:"4096" validate:"gte=1"`
}

// WhatsAppEnabled reports whether Cloud API credentials were configured.
func (c *Config) WhatsAppEnabled() bool {
	return c.WhatsApp.Token != "" || c.WhatsApp.PhoneNumberID != ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// listen_addr accepts "host:port" and ":port".
	_ = v.RegisterValidation("listen_addr", func(fl validator.FieldLevel) bool {
		_, port, err := net.SplitHostPort(fl.Field().String())
		if err != nil || port == "" {
			return false
		}
		_, err = net.LookupPort("tcp", port)
		return err == nil
	})
	return v
}

// Default returns the configuration made of the declared defaults only.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// New returns a viper instance reading WHATSFLOW_* variables for every key of Config.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnv(v, "", reflect.TypeOf(Config{}))
	return v
}

// bindEnv registers every leaf key so Unmarshal sees environment-only values.
func bindEnv(v *viper.Viper, prefix string, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			bindEnv(v, key, f.Type)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// Load reads file (optional) into v and returns the validated configuration.
// Without a file, ./whatsflow.{yaml,json,toml} is used when present.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("whatsflow")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration. WhatsApp settings are only checked
// when credentials are present.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.WhatsAppEnabled() {
		if err := validate.Struct(c.WhatsApp); err != nil {
			return fmt.Errorf("invalid whatsapp config: %w", err)
		}
	}
	return nil
}
