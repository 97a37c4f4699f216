package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/pkg/errors"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/jobs"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/status"
	"github.com/airenas/tarimas/internal/pkg/utils"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// JobManager submits and reconciles worker jobs
type JobManager interface {
	Submit(ctx context.Context, kind persistence.JobKind, req *jobs.SubmitRequest) (*persistence.Job, error)
	Poll(ctx context.Context, kind persistence.JobKind, id string) (*persistence.Job, error)
	Latest(ctx context.Context, kind persistence.JobKind, parentID string) (*persistence.Job, error)
	List(ctx context.Context, kind persistence.JobKind, refresh bool) ([]*persistence.Job, error)
	FindByExternalID(ctx context.Context, kind persistence.JobKind, extID string) (*persistence.Job, error)
	Webhook(ctx context.Context, kind persistence.JobKind, body []byte) error
}

// AnalysisDB reads analyses and their stored errors
type AnalysisDB interface {
	LoadAnalysisDetails(ctx context.Context, id string) (*persistence.AnalysisDetails, error)
	LoadErrors(ctx context.Context, analysisID string, word bool) ([]persistence.ErrorOperation, error)
	LoadRecording(ctx context.Context, id string) (*persistence.Recording, error)
}

// ReferenceDB reads reference speeches
type ReferenceDB interface {
	LoadReference(ctx context.Context, id string) (*persistence.ReferenceSpeech, error)
}

// FileReader loads file by name
type FileReader interface {
	LoadFile(ctx context.Context, name string) (io.ReadSeekCloser, error)
}

// Liver checks the service dependencies
type Liver interface {
	Live(ctx context.Context) error
}

// Data keeps data required for service work
type Data struct {
	Port       int
	Jobs       JobManager
	Analyses   AnalysisDB
	References ReferenceDB
	Reader     FileReader
	Live       Liver
}

// callerHeader carries the user ID set by the upstream auth proxy
const callerHeader = "x-user-id"

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Msgf("Starting HTTP tarimas jobs service at %d", data.Port)
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 5 * time.Minute

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Jobs == nil {
		return errors.New("no job manager")
	}
	if data.Analyses == nil {
		return errors.New("no analysis DB")
	}
	if data.References == nil {
		return errors.New("no reference DB")
	}
	if data.Reader == nil {
		return errors.New("no file reader")
	}
	if data.Live == nil {
		return errors.New("no live checker")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("tarimas_jobs", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.POST("/assessment", submitAssessment(data))
	e.GET("/assessment/:id/job", latestAssessment(data))
	e.GET("/assessment/jobs/:id", poll(data, persistence.KindAssessment))

	e.POST("/ipa-generation", submitIPAGeneration(data))
	e.GET("/ipa-generation", findIPAGeneration(data))
	e.GET("/ipa-generation/:id/job", latest(data, persistence.KindIPAGeneration))
	e.GET("/ipa-generation/jobs/:id", poll(data, persistence.KindIPAGeneration))

	e.POST("/jobs", submitJob(data))
	e.GET("/jobs", listJobs(data))
	e.GET("/jobs/:id", poll(data, persistence.KindGeneric))

	e.POST("/webhook/:kind", webhook(data))

	e.GET("/analysis/:id/alignment", alignmentHandler(data))

	e.GET("/audio/:kind/:id", audio(data))
	e.HEAD("/audio/:kind/:id", audio(data))

	e.GET("/live", live(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		if err := data.Live.Live(c.Request().Context()); err != nil {
			goapp.Log.Error().Err(err).Msg("not live")
			return c.JSONBlob(http.StatusServiceUnavailable, []byte(`{"service":"OK","db":"FAIL"}`))
		}
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK","db":"OK"}`))
	}
}

// toHTTPError maps coded errors to the HTTP status, uncoded errors are logged and hidden
func toHTTPError(err error) error {
	code := utils.CodeOf(err)
	if code == status.ECInternal {
		goapp.Log.Error().Err(err).Send()
		return echo.NewHTTPError(http.StatusInternalServerError, "Service error")
	}
	if code == status.ECBadGateway {
		goapp.Log.Error().Err(err).Send()
	} else {
		goapp.Log.Warn().Err(err).Send()
	}
	return echo.NewHTTPError(httpCode(code), utils.MsgOf(err))
}

func httpCode(code status.ErrCode) int {
	switch code {
	case status.ECNotFound:
		return http.StatusNotFound
	case status.ECForbidden:
		return http.StatusForbidden
	case status.ECConflict:
		return http.StatusConflict
	case status.ECBadGateway:
		return http.StatusBadGateway
	case status.ECValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func caller(c echo.Context) (string, error) {
	res := c.Request().Header.Get(callerHeader)
	if res == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return res, nil
}

func param(c echo.Context, name string) (string, error) {
	res := c.Param(name)
	if res == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("No %s", name))
	}
	return res, nil
}
