package callback

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/config"
	"github.com/airenas/tarimas/internal/pkg/persistence"
)

const (
	// AudioReference names reference speech audio
	AudioReference = "reference"
	// AudioRecording names user recording audio
	AudioRecording = "recording"
)

// Resolver computes the base URL the worker uses to reach this service
type Resolver struct {
	baseURL     *url.URL
	fallbackURL *url.URL
	gatewayHost string
	workerLocal bool
}

// Base is a resolved externally reachable service URL
type Base struct {
	u *url.URL
}

// NewResolver creates resolver from config
func NewResolver(cb config.Callback, workerURL string) (*Resolver, error) {
	res := &Resolver{gatewayHost: cb.GatewayHost}
	var err error
	if cb.BaseURL != "" {
		if res.baseURL, err = parseBase(cb.BaseURL); err != nil {
			return nil, fmt.Errorf("wrong base URL: %w", err)
		}
	}
	if res.fallbackURL, err = parseBase(cb.FallbackURL); err != nil {
		return nil, fmt.Errorf("wrong fallback URL: %w", err)
	}
	if res.gatewayHost == "" {
		return nil, fmt.Errorf("no gateway host")
	}
	if _, err := url.Parse(workerURL); err != nil {
		return nil, fmt.Errorf("wrong worker URL: %w", err)
	}
	res.workerLocal = IsLoopbackURL(workerURL)
	goapp.Log.Info().Bool("workerLocal", res.workerLocal).Str("gateway", res.gatewayHost).Msg("callback resolver")
	return res, nil
}

// Resolve selects configured base, then request origin, then fallback.
// Loopback hosts are rewritten to the gateway alias when the worker also runs locally.
func (r *Resolver) Resolve(origin string) *Base {
	u := r.fallbackURL
	if r.baseURL != nil {
		u = r.baseURL
	} else if ou, err := parseBase(origin); err == nil {
		u = ou
	} else if origin != "" {
		goapp.Log.Warn().Str("origin", goapp.Sanitize(origin)).Msg("wrong origin, use fallback")
	}
	res := *u
	if r.workerLocal && isLoopback(res.Hostname()) {
		res.Host = r.gatewayHost
		if p := u.Port(); p != "" {
			res.Host = net.JoinHostPort(r.gatewayHost, p)
		}
	}
	return &Base{u: &res}
}

// WebhookURL returns the webhook endpoint for the job kind
func (b *Base) WebhookURL(kind persistence.JobKind) string {
	return b.join("webhook", string(kind))
}

// AudioURL returns the audio proxy endpoint, kind is reference or recording
func (b *Base) AudioURL(kind, id string) string {
	return b.join("audio", kind, id)
}

func (b *Base) String() string {
	return b.u.String()
}

func (b *Base) join(parts ...string) string {
	return b.u.JoinPath(parts...).String()
}

func parseBase(s string) (*url.URL, error) {
	if s == "" {
		return nil, fmt.Errorf("empty")
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("no http(s) scheme in '%s'", s)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("no host in '%s'", s)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery, u.Fragment = "", ""
	return u, nil
}

// IsLoopbackURL returns true if the URL host is localhost or a loopback IP
func IsLoopbackURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return isLoopback(u.Hostname())
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
