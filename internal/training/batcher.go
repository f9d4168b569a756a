// Package training implements the retraining trigger pipeline: batching
// newly-approved claims and notifying the model-training service without
// blocking or corrupting claim state.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openagri/fieldclaim/internal/domain"
)

// lockKey serializes batch selection across concurrent approvals. Two
// racing rounds would otherwise select overlapping batches and double-feed
// the training service.
const lockKey = "training:batch"

// Batcher runs one retraining round per approved-claim event.
type Batcher struct {
	repo    domain.Repository
	trainer domain.Trainer
	cache   domain.Cache

	batchSize int
	lockTTL   time.Duration
}

// NewBatcher creates a retraining batcher. The lock TTL bounds how long a
// crashed round can keep the pipeline idle.
func NewBatcher(repo domain.Repository, trainer domain.Trainer, cache domain.Cache, batchSize int) *Batcher {
	if batchSize <= 0 {
		batchSize = 3
	}
	return &Batcher{
		repo:      repo,
		trainer:   trainer,
		cache:     cache,
		batchSize: batchSize,
		lockTTL:   30 * time.Second,
	}
}

// Run executes one retraining round. Rounds are single-flight: when
// another round holds the lock this one skips silently, the next approval
// will trigger again. Claims are marked used only after a successful
// training call, so a failure or crash leaves them eligible and the batch
// is retrained at least once.
func (b *Batcher) Run(ctx context.Context) error {
	acquired, err := b.cache.TryLock(ctx, lockKey, b.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire training lock: %w", err)
	}
	if !acquired {
		slog.Debug("retraining round already in flight, skipping")
		return nil
	}
	defer func() {
		if err := b.cache.Unlock(ctx, lockKey); err != nil {
			slog.Warn("failed to release training lock", "error", err)
		}
	}()

	batch, err := b.repo.ListTrainableClaims(ctx, b.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list trainable claims: %w", err)
	}

	if len(batch) < b.batchSize {
		slog.Debug("not enough approved claims for training",
			"available", len(batch),
			"required", b.batchSize,
		)
		return nil
	}

	ids := make([]string, len(batch))
	examples := make([]domain.TrainingExample, len(batch))
	for i, tc := range batch {
		ids[i] = tc.Claim.ID
		examples[i] = domain.TrainingExample{
			SoilMoisture:   tc.Reading.SoilMoisture,
			AirTemp:        tc.Reading.AirTemp,
			Humidity:       tc.Reading.Humidity,
			SoilTemp:       tc.Reading.SoilTemp,
			ExpectedAmount: tc.Claim.ExpectedAmount,
			ApprovedAmount: tc.Claim.ApprovedAmount,
		}
	}

	if err := b.trainer.Train(ctx, examples); err != nil {
		// Claims stay unmarked and eligible for the next round.
		slog.Error("training call failed, batch stays eligible",
			"claim_ids", ids,
			"error", err,
		)
		return fmt.Errorf("training call failed: %w", err)
	}

	if err := b.repo.MarkClaimsTrained(ctx, ids); err != nil {
		// The service already trained on this batch; leaving the claims
		// unmarked means at-least-once retraining, never lost data.
		slog.Error("failed to mark claims as trained",
			"claim_ids", ids,
			"error", err,
		)
		return fmt.Errorf("failed to mark claims trained: %w", err)
	}

	slog.Info("model retrained", "claim_count", len(ids))
	return nil
}
