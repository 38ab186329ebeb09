package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastPayload []byte
}

func (s *stubStore) Insert(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	s.lastTopic = topic
	s.lastPayload = payload
	return events.Event{ID: uuid.NewString(), Topic: topic, AggregateID: aggregateID, Payload: payload, OccurredAt: time.Now()}, nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

type captureQueue struct {
	tasks []*asynq.Task
}

func (q *captureQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t"}, nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	event, err := bus.Emit(context.Background(), events.TopicOrderCreated, "order-1", map[string]any{"orderId": "123"})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderCreated, store.lastTopic)
	require.JSONEq(t, `{"orderId":"123"}`, string(store.lastPayload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), " ", "a", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "a", "not json")
	require.Error(t, err)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	failing := &captureNotifier{err: errors.New("boom")}
	bus := events.Bus{Store: &stubStore{}, Notifiers: []events.Notifier{failing, nil}}
	ev, err := bus.Emit(context.Background(), events.TopicOrderCreated, "a", nil)
	require.Error(t, err)
	require.NotEmpty(t, ev.ID)
}

func TestAsynqNotifierFiltersTopics(t *testing.T) {
	q := &captureQueue{}
	n := events.AsynqNotifier{Client: q, Topics: []string{events.TopicOrderCreated}}

	require.NoError(t, n.Notify(context.Background(), events.Event{ID: "1", Topic: events.TopicComboConfigChanged}))
	require.Empty(t, q.tasks)

	require.NoError(t, n.Notify(context.Background(), events.Event{ID: "2", Topic: events.TopicOrderCreated, Payload: json.RawMessage(`{}`)}))
	require.Len(t, q.tasks, 1)
	require.Equal(t, events.TaskDeliver, q.tasks[0].Type())
}

func TestDispatcherSendsOrderConfirmation(t *testing.T) {
	mail := &common.InMemoryEmail{}
	d := &events.Dispatcher{Mailer: mail, Logger: zerolog.Nop()}

	payload, _ := json.Marshal(events.OrderCreatedPayload{OrderID: "o1", Number: "01J0ABC", Email: "buyer@example.com", GrandTotal: "348", Currency: "MXN"})
	body, _ := json.Marshal(events.Event{ID: "e1", Topic: events.TopicOrderCreated, Payload: payload})

	require.NoError(t, d.ProcessTask(context.Background(), asynq.NewTask(events.TaskDeliver, body)))
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "buyer@example.com", mail.Outbox[0].To)
	require.Contains(t, mail.Outbox[0].HTML, "348 MXN")

	err := d.ProcessTask(context.Background(), asynq.NewTask(events.TaskDeliver, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
