// Package config holds the on-disk configuration of the crawler and the
// helpers that open the resources it describes.
package config

import (
	"errors"
	"fmt"
	"time"

	"mtreport-backend/internal/retry"
	"mtreport-backend/internal/telemetry"
)

type Config struct {
	Local     LocalConfig       `json:"local"`
	Remote    RemoteConfig      `json:"remote"`
	Browser   BrowserConfig     `json:"browser"`
	Telemetry telemetry.Config  `json:"telemetry"`
	// Aliases maps a store name as the reports print it to the canonical
	// name stored remotely.
	Aliases map[string]string `json:"aliases"`
}

type RetryConfig struct {
	MaxAttempts int     `json:"max_attempts"`
	BaseDelayMs int     `json:"base_delay_ms"`
	Multiplier  float64 `json:"multiplier"`
	MaxDelayMs  int     `json:"max_delay_ms"`
}

type RemoteConfig struct {
	// ConnString is a postgres connection string, the remote store is
	// disabled when it is empty.
	ConnString         string      `json:"conn_string"`
	BatchSize          int         `json:"batch_size"`
	CallTimeoutSeconds int         `json:"call_timeout_seconds"`
	MaxConns           int32       `json:"max_conns"`
	Retry              RetryConfig `json:"retry"`
}

func (r RemoteConfig) Enabled() bool {
	return r.ConnString != ""
}

// RetryPolicy converts the retry section into a retry.Policy.
func (r RemoteConfig) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.Retry.MaxAttempts,
		BaseDelay:   time.Duration(r.Retry.BaseDelayMs) * time.Millisecond,
		Multiplier:  r.Retry.Multiplier,
		MaxDelay:    time.Duration(r.Retry.MaxDelayMs) * time.Millisecond,
		CallTimeout: time.Duration(r.CallTimeoutSeconds) * time.Second,
	}
}

type PageConfig struct {
	// TargetUrl is a substring of the browser tab url hosting the report.
	TargetUrl string `json:"target_url"`
	// FrameSelector selects the iframe holding the report table, empty when
	// the table lives in the top document.
	FrameSelector string `json:"frame_selector"`
	// TableSelector selects the report table inside the frame.
	TableSelector string `json:"table_selector"`
	// SetupScript is evaluated once per crawl with {start} and {end}
	// replaced by YYYY/MM/DD dates, it must leave the first result page visible.
	SetupScript string `json:"setup_script"`
	// SettleMs is how long to wait after setup and page changes for the table to render.
	SettleMs int `json:"settle_ms"`
}

type BrowserConfig struct {
	// Endpoint is the devtools http endpoint, ex. http://127.0.0.1:9222
	Endpoint string                `json:"endpoint"`
	Pages    map[string]PageConfig `json:"pages"`
}

func (c Config) WithDefaults() Config {
	if c.Local.File == "" && c.Local.Url == "" {
		c.Local.File = "data/mtreport.db"
	}
	if c.Remote.BatchSize <= 0 {
		c.Remote.BatchSize = 50
	}
	if c.Remote.CallTimeoutSeconds <= 0 {
		c.Remote.CallTimeoutSeconds = 30
	}
	if c.Remote.MaxConns <= 0 {
		c.Remote.MaxConns = 4
	}
	defaults := retry.DefaultPolicy()
	if c.Remote.Retry.MaxAttempts <= 0 {
		c.Remote.Retry.MaxAttempts = defaults.MaxAttempts
	}
	if c.Remote.Retry.BaseDelayMs <= 0 {
		c.Remote.Retry.BaseDelayMs = int(defaults.BaseDelay / time.Millisecond)
	}
	if c.Remote.Retry.Multiplier <= 0 {
		c.Remote.Retry.Multiplier = defaults.Multiplier
	}
	if c.Browser.Endpoint == "" {
		c.Browser.Endpoint = "http://127.0.0.1:9222"
	}
	if c.Aliases == nil {
		c.Aliases = map[string]string{}
	}
	return c
}

func (c Config) Validate() error {
	var errs []error
	if c.Remote.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("remote.retry.multiplier must be at least 1, got %v", c.Remote.Retry.Multiplier))
	}
	for source, canonical := range c.Aliases {
		if source == "" || canonical == "" {
			errs = append(errs, fmt.Errorf("alias %q -> %q has an empty side", source, canonical))
		}
	}
	for name, page := range c.Browser.Pages {
		if page.TargetUrl == "" {
			errs = append(errs, fmt.Errorf("browser.pages.%s.target_url is required", name))
		}
	}
	return errors.Join(errs...)
}
