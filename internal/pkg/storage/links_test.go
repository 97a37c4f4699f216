package storage

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/airenas/tarimas/internal/pkg/callback"
	"github.com/airenas/tarimas/internal/pkg/config"
	"github.com/airenas/tarimas/internal/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type presignerMock struct{ mock.Mock }

func (m *presignerMock) PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucket, key, expires, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

var presigner *presignerMock

func initTest(t *testing.T) {
	t.Helper()
	presigner = &presignerMock{}
}

func base(t *testing.T, workerURL string) *callback.Base {
	t.Helper()
	r, err := callback.NewResolver(config.Callback{FallbackURL: "http://localhost:3000", GatewayHost: "host.docker.internal"}, workerURL)
	require.Nil(t, err)
	return r.Resolve("")
}

func TestNewLinks(t *testing.T) {
	initTest(t)
	_, err := NewLinks(nil, config.Filer{Bucket: "b"}, "http://w")
	assert.NotNil(t, err)
	_, err = NewLinks(presigner, config.Filer{}, "http://w")
	assert.NotNil(t, err)
	l, err := NewLinks(nil, config.Filer{Bucket: "b", PublicURL: "https://cdn"}, "http://w")
	require.Nil(t, err)
	assert.Equal(t, time.Hour, l.ttl)
}

func TestAudioURL_ReferenceLocalWorker(t *testing.T) {
	initTest(t)
	l, err := NewLinks(presigner, config.Filer{Bucket: "b"}, "http://localhost:8000")
	require.Nil(t, err)

	got, err := l.AudioURL(test.Ctx(t), base(t, "http://localhost:8000"), callback.AudioReference, "s1", "ref/s1.wav")

	require.Nil(t, err)
	assert.Equal(t, "http://host.docker.internal:3000/audio/reference/s1", got)
	presigner.AssertNotCalled(t, "PresignedGetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAudioURL_RecordingLocalWorker(t *testing.T) {
	initTest(t)
	l, err := NewLinks(presigner, config.Filer{Bucket: "b", LinkTTL: time.Minute}, "http://127.0.0.1:8000")
	require.Nil(t, err)
	u, _ := url.Parse("http://minio:9000/b/rec/r1.wav?X-Amz-Signature=1")
	presigner.On("PresignedGetObject", mock.Anything, "b", "rec/r1.wav", time.Minute, mock.Anything).Return(u, nil)

	got, err := l.AudioURL(test.Ctx(t), base(t, "http://127.0.0.1:8000"), callback.AudioRecording, "r1", "rec/r1.wav")

	require.Nil(t, err)
	assert.Equal(t, u.String(), got)
}

func TestAudioURL_Public(t *testing.T) {
	initTest(t)
	l, err := NewLinks(presigner, config.Filer{Bucket: "b", PublicURL: "https://cdn.lt/audio/"}, "https://api.worker")
	require.Nil(t, err)

	got, err := l.AudioURL(test.Ctx(t), nil, callback.AudioReference, "s1", "ref/s1.wav")

	require.Nil(t, err)
	assert.Equal(t, "https://cdn.lt/audio/ref/s1.wav", got)
}

func TestAudioURL_Presigned(t *testing.T) {
	initTest(t)
	l, err := NewLinks(presigner, config.Filer{Bucket: "b"}, "https://api.worker")
	require.Nil(t, err)
	u, _ := url.Parse("https://s3/b/ref/s1.wav?sig=1")
	presigner.On("PresignedGetObject", mock.Anything, "b", "ref/s1.wav", time.Hour, mock.Anything).Return(u, nil)

	got, err := l.AudioURL(test.Ctx(t), base(t, "https://api.worker"), callback.AudioReference, "s1", "ref/s1.wav")

	require.Nil(t, err)
	assert.Equal(t, "https://s3/b/ref/s1.wav?sig=1", got)
}

func TestAudioURL_Fail(t *testing.T) {
	initTest(t)
	l, err := NewLinks(presigner, config.Filer{Bucket: "b"}, "https://api.worker")
	require.Nil(t, err)
	presigner.On("PresignedGetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("olia"))

	_, err = l.AudioURL(test.Ctx(t), nil, callback.AudioRecording, "r1", "rec/r1.wav")
	assert.NotNil(t, err)
	_, err = l.AudioURL(test.Ctx(t), nil, callback.AudioRecording, "r1", "")
	assert.NotNil(t, err)
}

func TestNewMinioClient(t *testing.T) {
	c, err := NewMinioClient(config.Filer{URL: "http://minio:9000", User: "u", Key: "k"})
	require.Nil(t, err)
	assert.Equal(t, "minio:9000", c.EndpointURL().Host)
	c, err = NewMinioClient(config.Filer{URL: "minio:9000"})
	require.Nil(t, err)
	assert.Equal(t, "http", c.EndpointURL().Scheme)
	_, err = NewMinioClient(config.Filer{})
	assert.NotNil(t, err)
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name, url  string
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{name: "http", url: "http://minio:9000", wantHost: "minio:9000"},
		{name: "https", url: "https://s3.tarimas.lt", wantHost: "s3.tarimas.lt", wantSecure: true},
		{name: "bare", url: "minio:9000", wantHost: "minio:9000"},
		{name: "empty", url: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, err := Endpoint(config.Filer{URL: tt.url})
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantHost, h)
			assert.Equal(t, tt.wantSecure, s)
		})
	}
}
