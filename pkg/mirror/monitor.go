package mirror

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Monitor runs catch-up once and then handles live events sequentially.
type Monitor struct {
	engine  *Engine
	catchUp *CatchUp
	source  Source
	log     zerolog.Logger
	metrics *Metrics

	started atomic.Bool
}

func NewMonitor(engine *Engine, catchUp *CatchUp, source Source, log zerolog.Logger, metrics *Metrics) *Monitor {
	return &Monitor{
		engine:  engine,
		catchUp: catchUp,
		source:  source,
		log:     log.With().Str("component", "monitor").Logger(),
		metrics: metrics,
	}
}

// Run blocks until ctx is canceled or every source subscription is closed.
// Live events are subscribed before catch-up starts so nothing sent during
// catch-up is lost, but they are only handled once catch-up has finished.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	newMessages := m.source.SubscribeNewMessages(nil)
	edits := m.source.SubscribeEdits(nil)
	deletes := m.source.SubscribeDeletes(nil)

	if m.catchUp != nil {
		_, err := m.catchUp.Run(ctx)
		if ctx.Err() != nil {
			return nil
		} else if IsStoreError(err) {
			return err
		} else if err != nil {
			m.log.Err(err).Msg("Catch-up did not complete, continuing with live events")
		}
	}

	m.log.Info().Msg("Listening for live events")
	for newMessages != nil || edits != nil || deletes != nil {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Stopped accepting live events")
			return nil
		case evt, ok := <-newMessages:
			if !ok {
				newMessages = nil
				continue
			}
			m.handleNewMessage(ctx, evt)
		case evt, ok := <-edits:
			if !ok {
				edits = nil
				continue
			}
			m.handleEdit(ctx, evt)
		case evt, ok := <-deletes:
			if !ok {
				deletes = nil
				continue
			}
			m.engine.HandleDeletes(ctx, evt)
		}
	}
	m.log.Info().Msg("Source subscriptions closed")
	return nil
}

func (m *Monitor) handleNewMessage(ctx context.Context, evt *MessageEvent) {
	_, err := m.engine.HandleNewMessage(ctx, evt)
	if err == nil || errors.Is(err, ErrConflict) || ctx.Err() != nil {
		return
	}
	m.metrics.dispatchFailed("new")
	m.log.Err(err).Str("event", "new").Stringer("source_id", evt.ID).Msg("Failed to mirror message")
}

func (m *Monitor) handleEdit(ctx context.Context, evt *MessageEdit) {
	_, err := m.engine.HandleEdit(ctx, evt)
	if err == nil || ctx.Err() != nil {
		return
	}
	m.metrics.dispatchFailed("edit")
	m.log.Err(err).Str("event", "edit").Stringer("source_id", evt.Message.ID).Msg("Failed to mirror edit")
}
