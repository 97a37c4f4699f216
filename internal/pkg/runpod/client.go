package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/runpod/api"
	"github.com/cenkalti/backoff/v4"
)

// Client comunicates with the serverless worker API
type Client struct {
	httpclient *http.Client
	baseURL    string
	key        string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

// NewClient creates a worker client
func NewClient(baseURL, key string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("no baseURL")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("wrong baseURL: %w", err)
	}
	if key == "" {
		return nil, fmt.Errorf("no key")
	}
	res := Client{baseURL: baseURL, key: key, timeout: timeout}
	if res.timeout <= 0 {
		res.timeout = time.Second * 30
	}
	res.httpclient = workerHTTPClient()
	res.backoff = newSimpleBackoff
	return &res, nil
}

// Run submits a job to the endpoint, webhook is called by the worker on completion
func (sp *Client) Run(ctx context.Context, endpoint string, input any, webhook string) (*api.RunResponse, error) {
	body, err := json.Marshal(api.RunRequest{Input: input, Webhook: webhook})
	if err != nil {
		return nil, fmt.Errorf("can't marshal input: %w", err)
	}
	urlStr, err := url.JoinPath(sp.baseURL, "v2", endpoint, "run")
	if err != nil {
		return nil, fmt.Errorf("can't prepare URL: %w", err)
	}
	res := &api.RunResponse{}
	if err := sp.invoke(ctx, http.MethodPost, urlStr, body, res); err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("wrong run response: %w", err)
	}
	goapp.Log.Info().Str("endpoint", endpoint).Str("extID", res.ID).Str("status", res.Status).Msg("submitted")
	return res, nil
}

// Status returns job status by external ID
func (sp *Client) Status(ctx context.Context, endpoint, extID string) (*api.StatusData, error) {
	urlStr, err := url.JoinPath(sp.baseURL, "v2", endpoint, "status", extID)
	if err != nil {
		return nil, fmt.Errorf("can't prepare URL: %w", err)
	}
	res := &api.StatusData{}
	if err := sp.invoke(ctx, http.MethodGet, urlStr, nil, res); err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("wrong status response: %w", err)
	}
	return res, nil
}

func (sp *Client) invoke(ctx context.Context, method, urlStr string, body []byte, res any) error {
	_, err := goapp.InvokeWithBackoff(ctx, func() (any, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, sp.timeout)
		defer cancelF()
		var br io.Reader
		if body != nil {
			br = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, br)
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Authorization", "Bearer "+sp.key)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		goapp.Log.Debug().Str("url", req.URL.String()).Str("method", req.Method).Msg("call")
		resp, err := sp.httpclient.Do(req)
		if err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
			_ = resp.Body.Close()
		}()
		if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
			err = fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
			return nil, goapp.IsRetryableCode(resp.StatusCode), err
		}
		if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
			return nil, false, fmt.Errorf("can't decode response: %w", err)
		}
		return nil, false, nil
	}, sp.backoff())
	return err
}

func workerHTTPClient() *http.Client {
	return &http.Client{Transport: newTransport()}
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 50
	res.MaxIdleConns = 20
	res.MaxIdleConnsPerHost = 20
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 3)
}
