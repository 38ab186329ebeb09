package order

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/events"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Service exposes order reads and admin metadata updates.
type Service struct {
	Store  Store
	Events Emitter
	Now    func() time.Time
	Logger zerolog.Logger
}

// ListResult is a page of orders.
type ListResult struct {
	Items []Order
	Total int64
}

// List returns a page of orders. An empty userID lists every user's orders.
func (s *Service) List(ctx context.Context, userID string, status Status, pg common.Pagination) (ListResult, error) {
	if status != "" && statusRank(status) == -2 {
		return ListResult{}, ErrInvalidStatus
	}
	items, total, err := s.Store.List(ctx, ListParams{UserID: userID, Status: status, Limit: pg.PerPage, Offset: pg.Offset()})
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

// Get returns one order. A non-empty userID restricts lookup to that owner.
func (s *Service) Get(ctx context.Context, id, userID string) (Order, error) {
	return s.Store.Get(ctx, strings.TrimSpace(id), userID)
}

// ChangeStatus moves an order to target. Totals are never touched.
func (s *Service) ChangeStatus(ctx context.Context, id string, target Status, actor string) (Order, error) {
	if statusRank(target) == -2 {
		return Order{}, ErrInvalidStatus
	}
	current, err := s.Store.Get(ctx, id, "")
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(current.Status, target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
	}
	updated, err := s.Store.UpdateStatus(ctx, id, current.Status, target)
	if err != nil {
		return Order{}, err
	}
	s.Logger.Info().Str("order_number", updated.Number).Str("from", string(current.Status)).
		Str("to", string(target)).Str("actor", actor).Msg("order status changed")
	if s.Events != nil {
		payload := map[string]any{"orderId": updated.ID, "number": updated.Number, "from": current.Status, "to": target, "actor": actor}
		if _, err := s.Events.Emit(ctx, events.TopicOrderStatusChanged, updated.ID, payload); err != nil {
			s.Logger.Warn().Err(err).Str("order_id", updated.ID).Msg("emit status event failed")
		}
	}
	return updated, nil
}

// ComboReport aggregates combo matches over [from, to). Zero bounds default to the last 30 days.
func (s *Service) ComboReport(ctx context.Context, from, to time.Time) ([]ComboReportRow, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return nil, common.NewAppError("BAD_REQUEST", "from must precede to", http.StatusBadRequest, nil)
	}
	return s.Store.ComboReport(ctx, from, to)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
