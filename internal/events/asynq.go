package events

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/b2b-storefront/internal/common"
)

// TaskDeliver is the asynq task type carrying one event to the worker.
const TaskDeliver = "events:deliver"

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqNotifier forwards selected topics to the worker queue.
type AsynqNotifier struct {
	Client Enqueuer
	Queue  string
	// Topics limits forwarding; empty forwards every topic.
	Topics []string
}

// Notify implements Notifier.
func (n AsynqNotifier) Notify(ctx context.Context, ev Event) error {
	if n.Client == nil {
		return nil
	}
	if len(n.Topics) > 0 && !slices.Contains(n.Topics, ev.Topic) {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.MaxRetry(5), asynq.Timeout(30 * time.Second), asynq.TaskID(ev.ID)}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	_, err = n.Client.EnqueueContext(ctx, asynq.NewTask(TaskDeliver, body), opts...)
	return err
}

// OrderCreatedPayload is the payload emitted with TopicOrderCreated.
type OrderCreatedPayload struct {
	OrderID    string `json:"orderId"`
	Number     string `json:"number"`
	UserID     string `json:"userId"`
	Email      string `json:"email,omitempty"`
	GrandTotal string `json:"grandTotal"`
	Currency   string `json:"currency"`
}

// Dispatcher handles delivered events inside the worker.
type Dispatcher struct {
	Mailer common.EmailSender
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler for TaskDeliver.
func (d *Dispatcher) ProcessTask(_ context.Context, task *asynq.Task) error {
	var ev Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return fmt.Errorf("decode event: %v: %w", err, asynq.SkipRetry)
	}
	switch ev.Topic {
	case TopicOrderCreated:
		return d.orderCreated(ev)
	default:
		d.Logger.Debug().Str("topic", ev.Topic).Str("event_id", ev.ID).Msg("event delivered")
		return nil
	}
}

func (d *Dispatcher) orderCreated(ev Event) error {
	var p OrderCreatedPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Errorf("decode order payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.Email == "" || d.Mailer == nil {
		d.Logger.Info().Str("order_number", p.Number).Msg("order confirmation skipped: no recipient")
		return nil
	}
	subject := "Order " + p.Number + " received"
	html := fmt.Sprintf("<p>Thank you for your order <strong>%s</strong>.</p><p>Total: %s %s</p>", p.Number, p.GrandTotal, p.Currency)
	if err := d.Mailer.Send(p.Email, subject, html); err != nil {
		return fmt.Errorf("send order confirmation: %w", err)
	}
	return nil
}
