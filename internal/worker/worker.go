// Package worker runs the asynchronous retraining trigger off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/openagri/fieldclaim/internal/domain"
	"github.com/openagri/fieldclaim/internal/training"
)

// Worker subscribes to approved-claim events and runs retraining rounds.
// It is fully decoupled from claim submission: a failed round only logs,
// the triggering claim is already persisted and responded to.
type Worker struct {
	bus     domain.EventBus
	batcher *training.Batcher

	roundTimeout  time.Duration
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a retraining worker.
func NewWorker(bus domain.EventBus, batcher *training.Batcher) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:          bus,
		batcher:      batcher,
		roundTimeout: 30 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start subscribes to the approved-claim topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicClaimApproved, w.handleApproved)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("retraining worker started", "topic", domain.TopicClaimApproved)
	return nil
}

// handleApproved runs one retraining round per approval event.
func (w *Worker) handleApproved(ctx context.Context, msg *domain.Message) error {
	var event domain.ClaimApprovedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse claim approved event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("retraining triggered",
		"claim_id", event.ClaimID,
		"source", event.Source,
	)

	// The round gets its own deadline; it must never inherit a request
	// context that could be canceled by the submission finishing.
	roundCtx, cancel := context.WithTimeout(w.ctx, w.roundTimeout)
	defer cancel()

	if err := w.batcher.Run(roundCtx); err != nil {
		slog.Error("retraining round failed",
			"claim_id", event.ClaimID,
			"error", err,
		)
		return err
	}

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("retraining worker stopped")
	return nil
}
