package service

import (
	"io"
	"net/http"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/api"
	"github.com/airenas/tarimas/internal/pkg/jobs"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/utils"
	"github.com/labstack/echo/v4"
)

const maxWebhookSize = 10 << 20

func submitAssessment(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("submit assessment")()

		callerID, err := caller(c)
		if err != nil {
			return err
		}
		var input api.AssessmentRequest
		if err := c.Bind(&input); err != nil {
			goapp.Log.Warn().Err(err).Send()
			return echo.NewHTTPError(http.StatusBadRequest, "Can't decode request")
		}
		if input.AnalysisID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No analysisId")
		}
		return submit(c, data, persistence.KindAssessment, &jobs.SubmitRequest{ParentID: input.AnalysisID, CallerID: callerID})
	}
}

func submitIPAGeneration(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("submit ipa generation")()

		var input api.IPAGenerationRequest
		if err := c.Bind(&input); err != nil {
			goapp.Log.Warn().Err(err).Send()
			return echo.NewHTTPError(http.StatusBadRequest, "Can't decode request")
		}
		if input.ReferenceSpeechID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No referenceSpeechId")
		}
		return submit(c, data, persistence.KindIPAGeneration, &jobs.SubmitRequest{ParentID: input.ReferenceSpeechID})
	}
}

func submitJob(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("submit job")()

		var input api.JobRequest
		if err := c.Bind(&input); err != nil {
			goapp.Log.Warn().Err(err).Send()
			return echo.NewHTTPError(http.StatusBadRequest, "Can't decode request")
		}
		return submit(c, data, persistence.KindGeneric, &jobs.SubmitRequest{Input: input.Input})
	}
}

func submit(c echo.Context, data *Data, kind persistence.JobKind, req *jobs.SubmitRequest) error {
	req.Origin = c.Request().Header.Get(echo.HeaderOrigin)
	job, err := data.Jobs.Submit(c.Request().Context(), kind, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, api.ToJob(job))
}

func latestAssessment(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("latest assessment")()

		callerID, err := caller(c)
		if err != nil {
			return err
		}
		id, err := param(c, "id")
		if err != nil {
			return err
		}
		if _, err := loadOwnedAnalysis(c, data, id, callerID); err != nil {
			return err
		}
		return latestJob(c, data, persistence.KindAssessment, id)
	}
}

func latest(data *Data, kind persistence.JobKind) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("latest " + string(kind))()

		id, err := param(c, "id")
		if err != nil {
			return err
		}
		return latestJob(c, data, kind, id)
	}
}

func latestJob(c echo.Context, data *Data, kind persistence.JobKind, parentID string) error {
	job, err := data.Jobs.Latest(c.Request().Context(), kind, parentID)
	if err != nil {
		return toHTTPError(err)
	}
	if job == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Job not found")
	}
	return c.JSON(http.StatusOK, api.ToJob(job))
}

func poll(data *Data, kind persistence.JobKind) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("poll " + string(kind))()

		id, err := param(c, "id")
		if err != nil {
			return err
		}
		job, err := data.Jobs.Poll(c.Request().Context(), kind, id)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, api.ToJob(job))
	}
}

func findIPAGeneration(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("find ipa generation")()

		extID := c.QueryParam("id")
		if extID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No id")
		}
		ctx := c.Request().Context()
		job, err := data.Jobs.FindByExternalID(ctx, persistence.KindIPAGeneration, extID)
		if err != nil {
			return toHTTPError(err)
		}
		job, err = data.Jobs.Poll(ctx, persistence.KindIPAGeneration, job.ID)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, api.ToJob(job))
	}
}

func listJobs(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("list jobs")()

		res, err := data.Jobs.List(c.Request().Context(), persistence.KindGeneric, utils.ParamTrue(c.QueryParam("refresh")))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, api.ToJobs(res))
	}
}

func webhook(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("webhook")()

		kind := persistence.JobKind(c.Param("kind"))
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookSize))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Can't read body")
		}
		if err := data.Jobs.Webhook(c.Request().Context(), kind, body); err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, api.WebhookResponse{Received: true})
	}
}
