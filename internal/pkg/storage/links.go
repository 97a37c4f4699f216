package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/callback"
	"github.com/airenas/tarimas/internal/pkg/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Presigner creates temporary object links
type Presigner interface {
	PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error)
}

// Links provides audio URLs for the worker
type Links struct {
	presigner Presigner
	bucket    string
	publicURL string
	ttl       time.Duration
	// proxy reference audio through this service
	proxyReference bool
}

// NewLinks creates links provider, the reference audio is proxied when the worker runs on a loopback host
func NewLinks(presigner Presigner, cfg config.Filer, workerURL string) (*Links, error) {
	if presigner == nil && cfg.PublicURL == "" {
		return nil, fmt.Errorf("no presigner and no public URL")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("no bucket")
	}
	res := &Links{presigner: presigner, bucket: cfg.Bucket, publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		ttl: cfg.LinkTTL, proxyReference: callback.IsLoopbackURL(workerURL)}
	if res.ttl <= 0 {
		res.ttl = time.Hour
	}
	goapp.Log.Info().Bool("proxyReference", res.proxyReference).Bool("public", res.publicURL != "").
		Str("ttl", res.ttl.String()).Msg("audio links")
	return res, nil
}

// AudioURL returns the URL the worker downloads the audio from.
// Order: local proxy for reference audio, public URL, presigned link.
func (l *Links) AudioURL(ctx context.Context, base *callback.Base, kind, id, key string) (string, error) {
	if kind == callback.AudioReference && l.proxyReference && base != nil {
		return base.AudioURL(kind, id), nil
	}
	if key == "" {
		return "", fmt.Errorf("no storage key for %s %s", kind, id)
	}
	if l.publicURL != "" {
		return url.JoinPath(l.publicURL, key)
	}
	u, err := l.presigner.PresignedGetObject(ctx, l.bucket, key, l.ttl, nil)
	if err != nil {
		return "", fmt.Errorf("can't presign %s: %w", key, err)
	}
	return u.String(), nil
}

// NewMinioClient creates object storage client used for presigned links
func NewMinioClient(cfg config.Filer) (*minio.Client, error) {
	endpoint, secure, err := Endpoint(cfg)
	if err != nil {
		return nil, err
	}
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.User, cfg.Key, ""),
		Secure: secure,
	})
}

// Endpoint splits the filer URL into minio host:port and TLS flag.
// A bare host:port is accepted as plain http.
func Endpoint(cfg config.Filer) (string, bool, error) {
	endpoint, secure := cfg.URL, false
	if u, err := url.Parse(cfg.URL); err == nil && u.Host != "" {
		endpoint, secure = u.Host, u.Scheme == "https"
	}
	if endpoint == "" {
		return "", false, fmt.Errorf("no filer URL")
	}
	return endpoint, secure, nil
}
