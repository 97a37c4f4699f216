package service

import (
	"net/http"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/alignment"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/status"
	"github.com/airenas/tarimas/internal/pkg/utils"
	"github.com/labstack/echo/v4"
)

func alignmentHandler(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("alignment")()

		callerID, err := caller(c)
		if err != nil {
			return err
		}
		id, err := param(c, "id")
		if err != nil {
			return err
		}
		g, err := alignment.ParseGranularity(c.QueryParam("type"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		d, err := loadOwnedAnalysis(c, data, id, callerID)
		if err != nil {
			return err
		}
		an := d.Analysis
		if an.Status != status.AnalysisCompleted {
			return echo.NewHTTPError(http.StatusConflict, "Analysis is not completed")
		}
		ops, err := data.Analyses.LoadErrors(c.Request().Context(), an.ID, g == alignment.Word)
		if err != nil {
			return toHTTPError(err)
		}
		target, recognized := an.TargetPhonemes, an.RecognizedPhonemes
		if g == alignment.Word {
			target, recognized = an.TargetWords, an.RecognizedWords
		}
		return c.JSON(http.StatusOK, alignment.Align(utils.FromSQLStr(target), utils.FromSQLStr(recognized), g, ops))
	}
}

func loadOwnedAnalysis(c echo.Context, data *Data, id, callerID string) (*persistence.AnalysisDetails, error) {
	d, err := data.Analyses.LoadAnalysisDetails(c.Request().Context(), id)
	if err != nil {
		return nil, toHTTPError(err)
	}
	if d == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Analysis not found")
	}
	if d.Recording.UserID != callerID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	}
	return d, nil
}
