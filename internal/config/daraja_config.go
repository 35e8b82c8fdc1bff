package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// DarajaConfig represents the complete mobile-money gateway configuration
type DarajaConfig struct {
	Daraja   DarajaIntegration `toml:"daraja"`
	Timeouts TimeoutConfig     `toml:"timeouts"`
}

// DarajaIntegration contains credentials and endpoints for the Daraja API
type DarajaIntegration struct {
	ConsumerKey    string `toml:"consumer_key"`
	ConsumerSecret string `toml:"consumer_secret"`
	ShortCode      string `toml:"short_code"`
	PassKey        string `toml:"pass_key"`
	BaseURL        string `toml:"base_url"`
	CallbackURL    string `toml:"callback_url"`
	Environment    string `toml:"environment"` // sandbox or production
}

// TimeoutConfig contains HTTP timeouts and the token cache margin
type TimeoutConfig struct {
	HTTPTimeoutSeconds      int `toml:"http_timeout_seconds"`
	TokenExpiryMarginSecond int `toml:"token_expiry_margin_seconds"`
}

// LoadDarajaConfig loads gateway configuration from a TOML file
func LoadDarajaConfig(filename string) (*DarajaConfig, error) {
	config := &DarajaConfig{}
	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("failed to load gateway config file: %w", err)
	}

	if config.Daraja.BaseURL == "" {
		if config.Daraja.Environment == "production" {
			config.Daraja.BaseURL = "https://api.safaricom.co.ke"
		} else {
			config.Daraja.BaseURL = "https://sandbox.safaricom.co.ke"
		}
	}
	if config.Timeouts.HTTPTimeoutSeconds <= 0 {
		config.Timeouts.HTTPTimeoutSeconds = 30
	}
	if config.Timeouts.TokenExpiryMarginSecond <= 0 {
		config.Timeouts.TokenExpiryMarginSecond = 60
	}

	return config, nil
}
