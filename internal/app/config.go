package app

import (
	"net/url"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/upc-lookup/internal/lookup"
	"github.com/xenking/upc-lookup/internal/signature"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the server configuration, loadable from environment variables
// (UPC_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string          `default:"0.0.0.0:8080" usage:"API server listen address"`
	DigitEyes DigitEyesConfig `env:"DIGITEYES" flag:"digiteyes" yaml:"digiteyes"`
	HTTP      HTTPConfig      `env:"HTTP" flag:"http" yaml:"http"`
	CORS      CORSConfig      `env:"CORS" flag:"cors" yaml:"cors"`
	Graceful  GracefulConfig  `env:"GRACEFUL" flag:"graceful" yaml:"graceful"`
}

// DigitEyesConfig holds the upstream credentials and signing parameters.
type DigitEyesConfig struct {
	AppKey    string `env:"APP_KEY" flag:"app-key" yaml:"app_key" usage:"digit-eyes application key (UPC_DIGITEYES_APP_KEY)"`
	AuthKey   string `env:"AUTH_KEY" flag:"auth-key" yaml:"auth_key" usage:"digit-eyes authorization key used to sign lookups (UPC_DIGITEYES_AUTH_KEY)"`
	Endpoint  string `env:"ENDPOINT" flag:"endpoint" yaml:"endpoint" default:"https://www.digit-eyes.com/gtin/v2_0/" usage:"Lookup endpoint"`
	Algorithm string `env:"ALGORITHM" flag:"algorithm" yaml:"algorithm" default:"sha1" usage:"HMAC hash function used for the signature"`
	Language  string `env:"LANGUAGE" flag:"language" yaml:"language" default:"en" usage:"Response language"`
}

// HTTPConfig bounds the outbound requests of a lookup.
type HTTPConfig struct {
	Timeout      time.Duration `env:"TIMEOUT" flag:"timeout" yaml:"timeout" default:"15s" usage:"Per-request upstream timeout"`
	MaxBodyBytes int64         `env:"MAX_BODY_BYTES" flag:"max-body-bytes" yaml:"max_body_bytes" default:"10485760" usage:"Upstream response body limit"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `env:"ORIGINS" flag:"origins" yaml:"origins" default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `env:"CREDENTIALS" flag:"credentials" yaml:"credentials" default:"false" usage:"Allow credentials (cookies, auth headers)"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `env:"READINESS_DELAY" flag:"readiness-delay" yaml:"readiness_delay" default:"3s" usage:"Delay after readiness=false before shutdown"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" flag:"shutdown-timeout" yaml:"shutdown_timeout" default:"15s" usage:"Maximum shutdown duration"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then validates it.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "UPC",
		Files:     []string{"config.yaml", "/etc/upc-lookup/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults honours the PORT variable set by hosting platforms
// when no explicit address was configured.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DigitEyes.AppKey == "" {
		return errors.New("digit-eyes app key is required: set UPC_DIGITEYES_APP_KEY")
	}
	if c.DigitEyes.AuthKey == "" {
		return errors.New("digit-eyes auth key is required: set UPC_DIGITEYES_AUTH_KEY")
	}
	if _, err := signature.ParseAlgorithm(c.DigitEyes.Algorithm); err != nil {
		return errors.Wrap(err, "digit-eyes algorithm")
	}
	if u, err := url.Parse(c.DigitEyes.Endpoint); err != nil || !u.IsAbs() {
		return errors.Errorf("digit-eyes endpoint %q is not an absolute url", c.DigitEyes.Endpoint)
	}
	if c.HTTP.Timeout <= 0 {
		return errors.Errorf("http timeout must be positive, got %s", c.HTTP.Timeout)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.Errorf("http max body bytes must be positive, got %d", c.HTTP.MaxBodyBytes)
	}
	return nil
}

// Credentials returns the configured digit-eyes credentials.
func (c *Config) Credentials() signature.Credentials {
	return signature.Credentials{AppKey: c.DigitEyes.AppKey, AuthKey: c.DigitEyes.AuthKey}
}

// LookupOptions translates the upstream settings into lookup client options.
func (c *Config) LookupOptions() ([]lookup.Option, error) {
	alg, err := signature.ParseAlgorithm(c.DigitEyes.Algorithm)
	if err != nil {
		return nil, errors.Wrap(err, "digit-eyes algorithm")
	}
	return []lookup.Option{
		lookup.WithSignerOptions(
			signature.WithAlgorithm(alg),
			signature.WithEndpoint(c.DigitEyes.Endpoint),
			signature.WithLanguage(c.DigitEyes.Language),
		),
		lookup.WithTimeout(c.HTTP.Timeout),
		lookup.WithMaxBodyBytes(c.HTTP.MaxBodyBytes),
	}, nil
}
