package rules

import (
	"github.com/openagri/fieldclaim/internal/domain"
)

// Decision is the scorer's verdict for one claim submission.
type Decision struct {
	Verdict domain.Verdict

	// Confidence is violations/4, nil when no reading was supplied.
	Confidence *float64
}

// Scorer maps an assessment to a confidence score and an auto-verdict.
type Scorer struct {
	cfg domain.DecisionConfig
}

// NewScorer creates a scorer with the given decision constants.
func NewScorer(cfg domain.DecisionConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the confidence and auto-verdict for an assessment.
// Branch order matters: the high-confidence approval is checked before the
// borderline/single-violation branch, so a reading with three violations is
// approved even when one metric also sits in a borderline band.
func (s *Scorer) Score(a domain.Assessment, hasReading bool) Decision {
	if !hasReading {
		return Decision{Verdict: domain.VerdictNeedsReview}
	}

	confidence := float64(a.Violations) / 4.0

	var verdict domain.Verdict
	switch {
	case confidence >= s.cfg.ApproveConfidence:
		verdict = domain.VerdictAutoApproved
	case a.Violations == 1 || a.Borderline:
		verdict = domain.VerdictNeedsReview
	default:
		verdict = domain.VerdictAutoRejected
	}

	return Decision{Verdict: verdict, Confidence: &confidence}
}
