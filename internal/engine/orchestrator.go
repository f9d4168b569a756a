// Package engine orchestrates the claim decision pipeline: threshold
// evaluation, confidence scoring, payout resolution, persistence with
// provenance, and the asynchronous retraining handoff.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openagri/fieldclaim/internal/domain"
	"github.com/openagri/fieldclaim/internal/payout"
	"github.com/openagri/fieldclaim/internal/rules"
)

var tracer = otel.Tracer("fieldclaim-engine")

// ErrValidation marks caller errors on claim submission or override.
var ErrValidation = errors.New("validation failed")

// State-conflict errors for the admin override path. These are rejected
// operations, distinct from system failures.
var (
	ErrAlreadyApproved = errors.New("claim already approved")
	ErrInvalidStatus   = errors.New("invalid claim status")
	ErrAmountRequired  = errors.New("approved amount required for review claims")
)

// Orchestrator runs one claim submission end to end and applies admin
// overrides. Each call is independent; there is no shared mutable state
// between submissions.
type Orchestrator struct {
	repo     domain.Repository
	bus      domain.EventBus
	engine   *rules.Engine
	scorer   *rules.Scorer
	resolver *payout.Resolver
	cfg      domain.DecisionConfig
}

// New creates a decision orchestrator. bus may be nil in tests; approval
// events are then skipped.
func New(repo domain.Repository, bus domain.EventBus, engine *rules.Engine, scorer *rules.Scorer, resolver *payout.Resolver, cfg domain.DecisionConfig) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		bus:      bus,
		engine:   engine,
		scorer:   scorer,
		resolver: resolver,
		cfg:      cfg,
	}
}

// SubmitInput is a claim submission.
type SubmitInput struct {
	FarmerID        string
	CropType        string
	Reason          string
	ExpectedAmount  float64
	SensorReadingID *string
}

// Submit decides a claim and persists it with its first two history
// entries. The prediction call inside payout resolution is the only
// blocking external I/O; its failure is a fallback branch, never a
// submission failure. An approval is handed to the retraining pipeline
// via the event bus without waiting for it.
func (o *Orchestrator) Submit(ctx context.Context, in SubmitInput) (*domain.Claim, error) {
	ctx, span := tracer.Start(ctx, "claim.submit")
	defer span.End()

	if in.FarmerID == "" {
		return nil, fmt.Errorf("%w: farmer id is required", ErrValidation)
	}
	if in.CropType == "" || in.Reason == "" {
		return nil, fmt.Errorf("%w: crop type and reason are required", ErrValidation)
	}
	if in.ExpectedAmount <= 0 {
		return nil, fmt.Errorf("%w: expected amount must be positive", ErrValidation)
	}

	var reading *domain.SensorReading
	if in.SensorReadingID != nil && *in.SensorReadingID != "" {
		var err error
		reading, err = o.repo.GetSensorReading(ctx, *in.SensorReadingID)
		if err != nil {
			return nil, fmt.Errorf("sensor reading %s: %w", *in.SensorReadingID, err)
		}
	}

	assessment, err := o.engine.Evaluate(reading)
	if err != nil {
		return nil, fmt.Errorf("threshold evaluation: %w", err)
	}

	decision := o.scorer.Score(assessment, reading != nil)

	now := time.Now().UTC()
	claim := &domain.Claim{
		ID:              uuid.New().String(),
		FarmerID:        in.FarmerID,
		CropType:        in.CropType,
		Reason:          in.Reason,
		ExpectedAmount:  in.ExpectedAmount,
		SensorReadingID: in.SensorReadingID,
		Verdict:         decision.Verdict,
		AutoVerdict:     decision.Verdict,
		ConfidenceScore: decision.Confidence,
		DecisionSource:  domain.SourceRuleEngine,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if decision.Verdict == domain.VerdictAutoApproved {
		res := o.resolver.Resolve(ctx, payout.Input{
			ClaimID:        claim.ID,
			CropType:       in.CropType,
			ExpectedAmount: in.ExpectedAmount,
			Confidence:     *decision.Confidence,
			Reading:        reading,
		})
		claim.ApprovedAmount = res.Amount
		claim.DecisionSource = res.Source
		claim.MLUsed = res.MLUsed
		claim.ModelConfidence = res.ModelConfidence
		claim.ApprovedAt = &now // engine finalization, no human actor
	}

	claim.AppendHistory(domain.ActionCreated, &in.FarmerID, "Claim submitted by farmer")
	claim.AppendHistory(verdictAction(decision.Verdict), nil, "System auto decision based on sensor data")

	if err := o.repo.SaveClaim(ctx, claim); err != nil {
		return nil, fmt.Errorf("failed to save claim: %w", err)
	}

	span.SetAttributes(
		attribute.String("claim.id", claim.ID),
		attribute.String("claim.verdict", string(claim.Verdict)),
		attribute.Int("claim.violations", assessment.Violations),
	)

	o.publishDecided(ctx, claim)
	if claim.Verdict.Approved() {
		o.publishApproved(ctx, claim)
	}

	slog.Info("claim decided",
		"claim_id", claim.ID,
		"farmer_id", claim.FarmerID,
		"verdict", claim.Verdict,
		"violations", assessment.Violations,
		"borderline", assessment.Borderline,
		"approved_amount", claim.ApprovedAmount,
		"decision_source", claim.DecisionSource,
	)

	return claim, nil
}

func verdictAction(v domain.Verdict) string {
	switch v {
	case domain.VerdictAutoApproved:
		return domain.ActionAutoApproved
	case domain.VerdictAutoRejected:
		return domain.ActionAutoRejected
	default:
		return domain.ActionSentForReview
	}
}

// publishDecided emits the post-decision event. Failures are logged only;
// the claim is already persisted and the response must not change.
func (o *Orchestrator) publishDecided(ctx context.Context, claim *domain.Claim) {
	if o.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"claimId": claim.ID,
		"verdict": string(claim.Verdict),
	})
	if err := o.bus.Publish(ctx, domain.TopicClaimDecided, payload); err != nil {
		slog.Error("failed to publish claim decided event",
			"claim_id", claim.ID,
			"error", err,
		)
	}
}

// publishApproved hands an approved claim to the retraining pipeline.
// Fire-and-forget: a publish failure never affects the claim response.
func (o *Orchestrator) publishApproved(ctx context.Context, claim *domain.Claim) {
	if o.bus == nil {
		return
	}
	payload, _ := json.Marshal(domain.ClaimApprovedEvent{
		ClaimID:        claim.ID,
		FarmerID:       claim.FarmerID,
		ApprovedAmount: claim.ApprovedAmount,
		Source:         claim.DecisionSource,
	})
	if err := o.bus.Publish(ctx, domain.TopicClaimApproved, payload); err != nil {
		slog.Error("failed to publish claim approved event",
			"claim_id", claim.ID,
			"error", err,
		)
	}
}
