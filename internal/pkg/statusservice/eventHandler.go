package statusservice

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/api"
	"github.com/airenas/tarimas/internal/pkg/messages"
	"github.com/airenas/tarimas/internal/pkg/utils"
	"github.com/airenas/tarimas/internal/pkg/utils/handler"
	"github.com/vgarvardt/gue/v5"
)

// HandlerData keeps data required for handler
type HandlerData struct {
	GueClient   *gue.Client
	WorkerCount int
	DB          DB
	WSHandler   WSConnHandler
}

// StartStatusHandler starts the event queue listener for status events
// returns channel for tracking if all jobs are finished
func StartStatusHandler(ctx context.Context, data *HandlerData) (chan struct{}, error) {
	if err := validateHandler(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Msg("Starting listen for messages")

	wm := gue.WorkMap{
		messages.StatusChange: handler.Create(data, handleStatus, handler.DefaultOpts[messages.JobMessage]().
			WithTimeout(10*time.Second).WithMaxRetries(1)),
	}

	pool, err := gue.NewWorkerPool(
		data.GueClient, wm, data.WorkerCount,
		gue.WithPoolQueue(messages.StatusChange),
		gue.WithPoolLogger(utils.NewGueLoggerAdapter()),
		gue.WithPoolPollInterval(500*time.Millisecond),
		gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
		gue.WithPoolID("status-worker"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not build gue workers pool: %w", err)
	}
	res := make(chan struct{}, 1)
	go func() {
		goapp.Log.Info().Msg("Starting workers")
		if err := pool.Run(ctx); err != nil {
			goapp.Log.Error().Err(err).Msg("pool error")
		}
		goapp.Log.Info().Msg("Pool workers finished")
		res <- struct{}{}
	}()
	return res, nil
}

// handleStatus pushes the job to clients subscribed by the job ID or by its parent ID
func handleStatus(ctx context.Context, m *messages.JobMessage, data *HandlerData) error {
	goapp.Log.Info().Str("ID", m.ID).Str("kind", string(m.Kind)).Msg("handling status change event")

	job, err := data.DB.LoadJob(ctx, m.Kind, m.ID)
	if err != nil {
		return fmt.Errorf("cannot load job %s: %w", m.ID, err)
	}
	if job == nil {
		goapp.Log.Warn().Str("ID", m.ID).Msg("no job, skip")
		return nil
	}
	keys := []string{job.ID}
	if job.ParentID != "" {
		keys = append(keys, job.ParentID)
	}
	conns := data.WSHandler.GetConnections(keys...)
	if len(conns) == 0 {
		goapp.Log.Debug().Str("ID", m.ID).Msg("no connections found")
		return nil
	}
	res := api.ToJob(job)
	for _, c := range conns {
		if err := sendMsg(c, res); err != nil {
			goapp.Log.Error().Err(err).Send()
		}
	}
	return nil
}

func sendMsg(c WsConn, res *api.Job) error {
	if err := c.WriteJSON(res); err != nil {
		return fmt.Errorf("cannot write to websocket: %w", err)
	}
	goapp.Log.Debug().Str("ID", res.ID).Msg("sent msg to websocket")
	return nil
}

func validateHandler(data *HandlerData) error {
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.WSHandler == nil {
		return fmt.Errorf("no WSHandler")
	}
	return nil
}
