package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML overlay. Unset fields leave the
// default in place.
type FileConfig struct {
	Server struct {
		Port           *int    `yaml:"port"`
		AllowedOrigins *string `yaml:"allowed_origins"`
		CookieSecure   *bool   `yaml:"cookie_secure"`
	} `yaml:"server"`

	Database struct {
		Store *string `yaml:"store"`
		URL   *string `yaml:"url"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret     *string `yaml:"jwt_secret"`
		OwnerUsername *string `yaml:"owner_username"`
		OwnerPassword *string `yaml:"owner_password"`
	} `yaml:"auth"`

	Keys struct {
		DefaultMonthlyLimit *int  `yaml:"default_monthly_limit"`
		TrackUsage          *bool `yaml:"track_usage"`
		UsageResetEnabled   *bool `yaml:"usage_reset_enabled"`
	} `yaml:"keys"`

	RateLimit struct {
		PerMinute *int `yaml:"per_minute"`
		Burst     *int `yaml:"burst"`
	} `yaml:"rate_limit"`

	Logging struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"logging"`

	PostHog struct {
		APIKey  *string `yaml:"api_key"`
		Host    *string `yaml:"host"`
		Enabled *bool   `yaml:"enabled"`
	} `yaml:"posthog"`
}

// ReadFile parses a YAML overlay from path.
func ReadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fc, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (fc *FileConfig) apply(c *Config) {
	setInt(&c.Port, fc.Server.Port)
	setString(&c.AllowedOrigins, fc.Server.AllowedOrigins)
	setBool(&c.CookieSecure, fc.Server.CookieSecure)

	setString(&c.Store, fc.Database.Store)
	setString(&c.DatabaseURL, fc.Database.URL)

	setString(&c.JWTSecret, fc.Auth.JWTSecret)
	setString(&c.OwnerUsername, fc.Auth.OwnerUsername)
	setString(&c.OwnerPassword, fc.Auth.OwnerPassword)

	setInt(&c.DefaultMonthlyLimit, fc.Keys.DefaultMonthlyLimit)
	setBool(&c.TrackUsage, fc.Keys.TrackUsage)
	setBool(&c.UsageResetEnabled, fc.Keys.UsageResetEnabled)

	setInt(&c.ValidationRatePerMinute, fc.RateLimit.PerMinute)
	setInt(&c.ValidationRateBurst, fc.RateLimit.Burst)

	setString(&c.LogLevel, fc.Logging.Level)
	setString(&c.LogFormat, fc.Logging.Format)

	setString(&c.PostHogAPIKey, fc.PostHog.APIKey)
	setString(&c.PostHogHost, fc.PostHog.Host)
	setBool(&c.PostHogEnabled, fc.PostHog.Enabled)
}
