package mirror

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type CatchUpOptions struct {
	// ItemDelay is the fixed pause between replayed messages.
	ItemDelay time.Duration
	// InitialFullSync replays the whole conversation when there is no checkpoint yet.
	InitialFullSync bool
	// RecentLimit is the lookback window for view-once recovery and offline edit detection.
	RecentLimit        int
	RecoverViewOnce    bool
	DetectOfflineEdits bool
	Metrics            *Metrics
}

// Summary reports what a catch-up run did.
type Summary struct {
	Attempted int
	Succeeded int
	Skipped   int
	Failed    int

	RepliesResolved   int
	ViewOnceRecovered int
	EditsDetected     int
	Duration          time.Duration
}

func (s Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Int("attempted", s.Attempted).
		Int("succeeded", s.Succeeded).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("replies_resolved", s.RepliesResolved).
		Int("view_once_recovered", s.ViewOnceRecovered).
		Int("edits_detected", s.EditsDetected).
		Dur("duration", s.Duration)
}

// CatchUp replays conversation history missed while the process was down.
type CatchUp struct {
	engine  *Engine
	store   Store
	source  Source
	opts    CatchUpOptions
	log     zerolog.Logger
	limiter *rate.Limiter
}

func NewCatchUp(engine *Engine, store Store, source Source, log zerolog.Logger, opts CatchUpOptions) *CatchUp {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 100
	}
	limit := rate.Inf
	if opts.ItemDelay > 0 {
		limit = rate.Every(opts.ItemDelay)
	}
	return &CatchUp{
		engine:  engine,
		store:   store,
		source:  source,
		opts:    opts,
		log:     log.With().Str("component", "catchup").Logger(),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run replays every message after the checkpoint in ascending order, then
// sweeps the recent window. A StoreError aborts the run.
func (c *CatchUp) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	checkpoint, err := c.store.Checkpoint(ctx)
	if err != nil {
		return summary, WrapStoreError("read checkpoint", err)
	}
	replay := checkpoint != 0 || c.opts.InitialFullSync
	if checkpoint == 0 {
		// Messages that failed before anything else was mapped leave no checkpoint behind.
		holds, err := c.store.CheckpointHolds(ctx)
		if err != nil {
			return summary, WrapStoreError("list checkpoint holds", err)
		} else if len(holds) > 0 {
			checkpoint = holds[0] - 1
			replay = true
		}
	}
	log := c.log.With().Stringer("checkpoint", checkpoint).Logger()

	if !replay {
		log.Info().Msg("No checkpoint found, starting fresh without replaying history")
	} else {
		log.Info().Msg("Replaying missed messages")
		if err = c.replay(ctx, log, checkpoint, &summary); err != nil {
			return summary, err
		}
	}

	summary.RepliesResolved, err = c.engine.ResolvePendingReplies(ctx)
	if err != nil {
		return summary, err
	}

	if c.opts.RecoverViewOnce || c.opts.DetectOfflineEdits {
		if err = c.sweepRecent(ctx, log, &summary); err != nil {
			return summary, err
		}
	}

	summary.Duration = time.Since(start)
	log.Info().EmbedObject(summary).Msg("Catch-up finished")
	return summary, nil
}

func (c *CatchUp) replay(ctx context.Context, log zerolog.Logger, checkpoint SourceID, summary *Summary) error {
	for evt, err := range c.source.FetchHistory(ctx, checkpoint) {
		if err != nil {
			return fmt.Errorf("failed to fetch history: %w", err)
		}
		if evt.ID <= checkpoint {
			continue
		}
		if err = c.limiter.Wait(ctx); err != nil {
			return err
		}
		summary.Attempted++
		exists, err := c.store.Exists(ctx, evt.ID)
		if err != nil {
			return WrapStoreError("exists", err)
		} else if exists {
			summary.Skipped++
			c.opts.Metrics.catchUpItem("skipped")
			if err = c.engine.CommitCheckpoint(ctx, evt.ID); err != nil {
				return err
			}
			continue
		}

		outcome, err := c.engine.HandleNewMessage(ctx, evt)
		switch {
		case errors.Is(err, ErrConflict):
			summary.Skipped++
			c.opts.Metrics.catchUpItem("skipped")
		case IsStoreError(err):
			return err
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			summary.Failed++
			c.opts.Metrics.catchUpItem("failed")
			c.opts.Metrics.dispatchFailed("catchup")
			log.Err(err).Stringer("source_id", evt.ID).Bool("permanent", IsPermanent(err)).Msg("Failed to replay message")
		case outcome == OutcomeSkipped:
			summary.Skipped++
			c.opts.Metrics.catchUpItem("skipped")
			if err = c.engine.CommitCheckpoint(ctx, evt.ID); err != nil {
				return err
			}
		default:
			summary.Succeeded++
			c.opts.Metrics.catchUpItem("succeeded")
		}
	}
	return nil
}

func (c *CatchUp) sweepRecent(ctx context.Context, log zerolog.Logger, summary *Summary) error {
	var recent []*MessageEvent
	for evt, err := range c.source.FetchRecent(ctx, c.opts.RecentLimit) {
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch recent messages, skipping recovery sweep")
			return nil
		}
		recent = append(recent, evt)
	}
	slices.SortFunc(recent, func(a, b *MessageEvent) int { return cmp.Compare(a.ID, b.ID) })

	for _, evt := range recent {
		rec, err := c.store.GetMessage(ctx, evt.ID)
		if err != nil {
			return WrapStoreError("get message", err)
		}
		switch {
		case rec == nil && c.opts.RecoverViewOnce && evt.IsSelfDestructing && evt.Media != nil:
			if err = c.limiter.Wait(ctx); err != nil {
				return err
			}
			outcome, err := c.engine.HandleNewMessageForced(ctx, evt)
			if IsStoreError(err) {
				return err
			} else if err != nil && !errors.Is(err, ErrConflict) {
				log.Err(err).Stringer("source_id", evt.ID).Msg("Failed to recover view-once media")
			} else if outcome == OutcomeApplied {
				summary.ViewOnceRecovered++
			}
		case rec != nil && c.opts.DetectOfflineEdits && !rec.IsDeleted && TruncateContent(evt.Text) != rec.Content:
			if err = c.limiter.Wait(ctx); err != nil {
				return err
			}
			outcome, err := c.engine.HandleEdit(ctx, &MessageEdit{Message: evt})
			if IsStoreError(err) {
				return err
			} else if err != nil {
				log.Err(err).Stringer("source_id", evt.ID).Msg("Failed to mirror offline edit")
			} else if outcome == OutcomeApplied {
				summary.EditsDetected++
			}
		}
	}
	return nil
}
