package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
)

type enqueuer interface {
	Enqueue(ctx context.Context, j *gue.Job) error
}

// Sender publishes status change events to the gue queue stored in the same database
type Sender struct {
	gc enqueuer
}

// NewSender initializes gue sender
func NewSender(pool *pgxpool.Pool) (*Sender, error) {
	gc, err := NewGueClient(pool)
	if err != nil {
		return nil, err
	}
	return &Sender{gc: gc}, nil
}

// NewGueClient creates gue client over the pool
func NewGueClient(pool *pgxpool.Pool) (*gue.Client, error) {
	gc, err := gue.NewClient(pgxv5.NewConnPool(pool))
	if err != nil {
		return nil, fmt.Errorf("can't init gue: %w", err)
	}
	return gc, nil
}

// SendMessage enqueues the message, the queue name is used as the job type
func (sender *Sender) SendMessage(ctx context.Context, msg messages.Message, queue string) error {
	args, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("can't marshal msg: %w", err)
	}
	j := &gue.Job{Type: queue, Queue: queue, Args: args}
	if err := sender.gc.Enqueue(ctx, j); err != nil {
		return fmt.Errorf("can't send msg to %s: %w", queue, err)
	}
	goapp.Log.Debug().Str("queue", queue).Msg("sent")
	return nil
}
