package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/openagri/fieldclaim/internal/domain"
)

// OverrideInput is an admin decision on a claim left in review (or a
// revision of an automatic rejection).
type OverrideInput struct {
	ClaimID string

	// TargetStatus is "approved" or "rejected".
	TargetStatus string

	// Amount is required when approving a claim the engine sent to review:
	// the engine never guessed an amount for those, a human must supply one.
	Amount *float64

	// ActorID identifies the admin for the audit fields and history.
	ActorID string
}

// Override applies a human decision to a claim. An approved claim is
// terminal and can never be re-approved or rejected; rejected and pending
// claims remain revisable.
func (o *Orchestrator) Override(ctx context.Context, in OverrideInput) (*domain.Claim, error) {
	ctx, span := tracer.Start(ctx, "claim.override")
	defer span.End()

	if in.TargetStatus != domain.StatusApproved && in.TargetStatus != domain.StatusRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.TargetStatus)
	}
	if in.Amount != nil && *in.Amount <= 0 {
		return nil, fmt.Errorf("%w: approved amount must be positive", ErrValidation)
	}

	claim, err := o.repo.GetClaim(ctx, in.ClaimID)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", in.ClaimID, err)
	}

	if claim.Status() == domain.StatusApproved {
		return nil, ErrAlreadyApproved
	}

	now := time.Now().UTC()

	if in.TargetStatus == domain.StatusApproved {
		if claim.AutoStatus() == domain.AutoStatusReview && in.Amount == nil {
			return nil, ErrAmountRequired
		}
		claim.Verdict = domain.VerdictAdminApproved
		if in.Amount != nil {
			amount := math.Min(*in.Amount, claim.ExpectedAmount)
			amount = math.Min(amount, o.cfg.MaxPayout)
			claim.ApprovedAmount = math.Round(amount)
		}
	} else {
		claim.Verdict = domain.VerdictAdminRejected
		claim.ApprovedAmount = 0
	}

	claim.ApprovedBy = &in.ActorID
	claim.ApprovedAt = &now
	claim.DecisionSource = domain.SourceAdmin
	claim.MLUsed = false
	// An admin-set amount is not training-quality data until re-flagged.
	claim.UsedForTraining = false
	claim.UpdatedAt = now

	claim.AppendHistory(in.TargetStatus, &in.ActorID, fmt.Sprintf("Claim %s by admin", in.TargetStatus))

	if err := o.repo.UpdateClaimDecision(ctx, claim); err != nil {
		return nil, fmt.Errorf("failed to update claim: %w", err)
	}

	if claim.Verdict.Approved() {
		o.publishApproved(ctx, claim)
	}

	slog.Info("claim overridden",
		"claim_id", claim.ID,
		"actor_id", in.ActorID,
		"verdict", claim.Verdict,
		"approved_amount", claim.ApprovedAmount,
	)

	return claim, nil
}
