package service

import (
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/callback"
	"github.com/labstack/echo/v4"
	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

// audio serves reference audio to the worker and recordings to their owners
func audio(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("audio method")()

		id, err := param(c, "id")
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		var key string
		switch c.Param("kind") {
		case callback.AudioReference:
			ref, err := data.References.LoadReference(ctx, id)
			if err != nil {
				return toHTTPError(err)
			}
			if ref == nil {
				return echo.NewHTTPError(http.StatusNotFound, "Reference speech not found")
			}
			key = ref.StorageKey
		case callback.AudioRecording:
			callerID, err := caller(c)
			if err != nil {
				return err
			}
			rec, err := data.Analyses.LoadRecording(ctx, id)
			if err != nil {
				return toHTTPError(err)
			}
			if rec == nil {
				return echo.NewHTTPError(http.StatusNotFound, "Recording not found")
			}
			if rec.UserID != callerID {
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
			}
			key = rec.StorageKey
		default:
			return echo.NewHTTPError(http.StatusNotFound, "Unknown audio kind")
		}
		if key == "" {
			return echo.NewHTTPError(http.StatusNotFound, "No audio")
		}
		return serveFile(c, data, key)
	}
}

func serveFile(c echo.Context, data *Data, name string) error {
	goapp.Log.Info().Str("file", name).Msg("loading")
	file, err := data.Reader.LoadFile(c.Request().Context(), name)
	if err != nil {
		return fileError(err, "Can't get file")
	}
	defer file.Close()
	stGetter, ok := file.(interface{ Stat() (fs.FileInfo, error) })
	if !ok {
		goapp.Log.Error().Msg(`file does not implement "Stat() (fs.FileInfo, error)"`)
		return echo.NewHTTPError(http.StatusInternalServerError, "Can't get file stat")
	}
	stat, err := stGetter.Stat()
	if err != nil {
		return fileError(err, "Can't get file stat")
	}
	w := c.Response()
	w.Header().Set("Content-Disposition", "inline; filename="+filepath.Base(name))
	http.ServeContent(w, c.Request(), filepath.Base(name), stat.ModTime(), file)
	return nil
}

func fileError(err error, msg string) error {
	goapp.Log.Error().Err(err).Send()
	if isNotFound(err) {
		return echo.NewHTTPError(http.StatusNotFound, "Audio not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}

func isNotFound(err error) bool {
	var errTest minio.ErrorResponse
	return errors.As(err, &errTest) && errTest.StatusCode == http.StatusNotFound
}
