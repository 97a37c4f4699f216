package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	defaultAssessmentEndpoint = "pronunciation-assessment"
	defaultGenerationEndpoint = "ipa-generation"
	defaultFallbackURL        = "http://localhost:3000"
	defaultGatewayHost        = "host.docker.internal"
	defaultWorkerTimeout      = 30 * time.Second
)

// Worker holds the external compute worker settings
type Worker struct {
	URL                string
	Key                string
	AssessmentEndpoint string
	GenerationEndpoint string
	Timeout            time.Duration
}

// Callback holds settings to build the worker reachable URLs of this service
type Callback struct {
	BaseURL     string
	FallbackURL string
	GatewayHost string
}

// Filer holds object storage settings
type Filer struct {
	URL       string
	User      string
	Key       string
	Bucket    string
	PublicURL string
	LinkTTL   time.Duration
}

// Config is the explicit service configuration
type Config struct {
	Port     int
	DBURL    string
	Worker   Worker
	Callback Callback
	Filer    Filer
}

// Load reads config from viper, all problems are reported at once
func Load(v *viper.Viper) (*Config, error) {
	res := &Config{}
	res.Port = v.GetInt("port")
	res.DBURL = v.GetString("db.url")
	res.Worker.URL = v.GetString("worker.url")
	res.Worker.Key = v.GetString("worker.key")
	res.Worker.AssessmentEndpoint = defaultV(v.GetString("worker.assessmentEndpoint"), defaultAssessmentEndpoint)
	res.Worker.GenerationEndpoint = defaultV(v.GetString("worker.generationEndpoint"), defaultGenerationEndpoint)
	res.Worker.Timeout = defaultV(v.GetDuration("worker.timeout"), defaultWorkerTimeout)
	res.Callback.BaseURL = v.GetString("webhook.baseUrl")
	res.Callback.FallbackURL = defaultV(v.GetString("webhook.fallbackUrl"), defaultFallbackURL)
	res.Callback.GatewayHost = defaultV(v.GetString("webhook.gatewayHost"), defaultGatewayHost)
	res.Filer.URL = v.GetString("filer.url")
	res.Filer.User = v.GetString("filer.user")
	res.Filer.Key = v.GetString("filer.key")
	res.Filer.Bucket = v.GetString("filer.bucket")
	res.Filer.PublicURL = v.GetString("filer.publicUrl")
	res.Filer.LinkTTL = defaultV(v.GetDuration("filer.linkTTL"), time.Hour)
	if err := res.validate(); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Config) validate() error {
	var err error
	if c.DBURL == "" {
		err = multierr.Append(err, fmt.Errorf("no db.url"))
	}
	if c.Worker.Key == "" {
		err = multierr.Append(err, fmt.Errorf("no worker.key"))
	}
	err = multierr.Append(err, checkURL("worker.url", c.Worker.URL, true))
	err = multierr.Append(err, checkURL("webhook.baseUrl", c.Callback.BaseURL, false))
	err = multierr.Append(err, checkURL("webhook.fallbackUrl", c.Callback.FallbackURL, true))
	err = multierr.Append(err, checkURL("filer.publicUrl", c.Filer.PublicURL, false))
	if c.Filer.Bucket == "" {
		err = multierr.Append(err, fmt.Errorf("no filer.bucket"))
	}
	return err
}

func checkURL(name, s string, required bool) error {
	if s == "" {
		if required {
			return fmt.Errorf("no %s", name)
		}
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("wrong %s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("wrong %s: no http(s) scheme", name)
	}
	if u.Host == "" {
		return fmt.Errorf("wrong %s: no host", name)
	}
	return nil
}

func defaultV[T comparable](v, d T) T {
	var e T
	if v == e {
		return d
	}
	return v
}
