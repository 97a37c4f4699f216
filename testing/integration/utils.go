//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/airenas/tarimas/internal/pkg/postgres"
	"github.com/airenas/tarimas/internal/pkg/test"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const userID = "integration-user"

// waitFor retries f every 500ms until it succeeds or ctx is done
func waitFor(ctx context.Context, what string, f func() error) {
	for {
		err := f()
		if err == nil {
			return
		}
		log.Printf("waiting for %s: %v", what, err)
		select {
		case <-ctx.Done():
			log.Fatalf("FAIL: can't access %s", what)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func WaitForOpenOrFail(ctx context.Context, URL string) {
	u, err := url.Parse(URL)
	if err != nil {
		log.Fatalf("FAIL: can't parse %s", URL)
	}
	hostPort := net.JoinHostPort(u.Hostname(), u.Port())
	waitFor(ctx, hostPort, func() error {
		conn, err := net.DialTimeout("tcp", hostPort, time.Second)
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

func GetEnvOrFail(s string) string {
	res := os.Getenv(s)
	if res == "" {
		log.Fatalf("no env '%s'", s)
	}
	return res
}

// NewRequest makes a JSON request to the service as the integration user
func NewRequest(t *testing.T, method string, srv, urlSuffix string, body interface{}) *http.Request {
	t.Helper()
	path, err := url.JoinPath(srv, urlSuffix)
	require.Nil(t, err)
	var req *http.Request
	if body != nil {
		req, err = http.NewRequest(method, path, test.JSON(t, body))
	} else {
		req, err = http.NewRequest(method, path, nil)
	}
	require.Nil(t, err, "not nil error = %v", err)
	if body != nil {
		req.Header.Add(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return test.AsUser(req, userID)
}

func waitForDB(ctx context.Context, URL string) {
	dbPool, err := pgxpool.New(ctx, URL)
	if err != nil {
		log.Fatalf("FAIL: can't init db pool")
	}
	defer dbPool.Close()

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		log.Fatalf("FAIL: can't init db: %v", err)
	}
	waitFor(ctx, "db schema", func() error {
		if err := db.Live(ctx); err != nil {
			return fmt.Errorf("not live: %w", err)
		}
		return nil
	})
}
