// Package domain defines the core types and interfaces for Fieldclaim.
package domain

import (
	"time"
)

// Verdict is the authoritative state of a claim, as a single tagged value.
// The source system tracked two loosely-coupled string fields (status +
// autoStatus); collapsing them into one enum removes the disagreement bugs.
type Verdict string

const (
	// VerdictNeedsReview means the claim awaits a human decision.
	// Externally this surfaces as status "pending".
	VerdictNeedsReview Verdict = "needs_review"

	// VerdictAutoApproved means the engine approved the claim.
	VerdictAutoApproved Verdict = "auto_approved"

	// VerdictAutoRejected means the engine rejected the claim.
	VerdictAutoRejected Verdict = "auto_rejected"

	// VerdictAdminApproved means a human reviewer approved the claim.
	VerdictAdminApproved Verdict = "admin_approved"

	// VerdictAdminRejected means a human reviewer rejected the claim.
	VerdictAdminRejected Verdict = "admin_rejected"
)

// Claim status values exposed over the API.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Auto-decision values exposed over the API.
const (
	AutoStatusApproved = "approved"
	AutoStatusRejected = "rejected"
	AutoStatusReview   = "review"
)

// Status derives the claim-level status from a verdict.
func (v Verdict) Status() string {
	switch v {
	case VerdictAutoApproved, VerdictAdminApproved:
		return StatusApproved
	case VerdictAutoRejected, VerdictAdminRejected:
		return StatusRejected
	default:
		return StatusPending
	}
}

// AutoStatus derives the engine-level decision from a verdict.
func (v Verdict) AutoStatus() string {
	switch v {
	case VerdictAutoApproved, VerdictAdminApproved:
		return AutoStatusApproved
	case VerdictAutoRejected, VerdictAdminRejected:
		return AutoStatusRejected
	default:
		return AutoStatusReview
	}
}

// Approved reports whether the verdict is a terminal approval.
func (v Verdict) Approved() bool {
	return v == VerdictAutoApproved || v == VerdictAdminApproved
}

// DecisionSource identifies which component produced the approved amount.
type DecisionSource string

const (
	SourceRuleEngine DecisionSource = "RULE_ENGINE"
	SourceMLModel    DecisionSource = "ML_MODEL"
	SourceAdmin      DecisionSource = "ADMIN"
)

// History entry actions.
const (
	ActionCreated       = "created"
	ActionAutoApproved  = "auto_approved"
	ActionAutoRejected  = "auto_rejected"
	ActionSentForReview = "sent_for_review"
	ActionApproved      = "approved"
	ActionRejected      = "rejected"
)

// HistoryEntry is one append-only provenance record on a claim.
// Entries are never mutated or removed once written.
type HistoryEntry struct {
	Action string    `json:"action"`
	Actor  *string   `json:"actor,omitempty"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

// Claim is the central entity: a request for an insurance payout tied to a
// crop-damage event, plus the full decision provenance.
type Claim struct {
	ID       string `json:"id"`
	FarmerID string `json:"farmerId"`

	// Claimant inputs
	CropType        string  `json:"cropType"`
	Reason          string  `json:"reason"`
	ExpectedAmount  float64 `json:"expectedAmount"`
	SensorReadingID *string `json:"sensorReadingId,omitempty"`

	// Verdict is the authoritative state of the claim.
	Verdict Verdict `json:"verdict"`

	// AutoVerdict records the engine's immediate verdict at submission time.
	// It is written once and never changes, even after an admin override.
	AutoVerdict Verdict `json:"autoVerdict"`

	// ConfidenceScore is the normalized violation count in [0,1].
	// Nil when the claim was submitted without a sensor reading.
	ConfidenceScore *float64 `json:"confidenceScore,omitempty"`

	// ModelConfidence is the prediction service's own (or derived)
	// confidence for the predicted amount. Diagnostic only.
	ModelConfidence *float64 `json:"modelConfidence,omitempty"`

	DecisionSource DecisionSource `json:"decisionSource"`
	MLUsed         bool           `json:"mlUsed"`

	ApprovedAmount  float64 `json:"approvedAmount"`
	UsedForTraining bool    `json:"usedForTraining"`

	ApprovedBy *string    `json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`

	History []HistoryEntry `json:"history"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Status returns the API-visible claim status.
func (c *Claim) Status() string { return c.Verdict.Status() }

// AutoStatus returns the engine's verdict prior to any human review.
func (c *Claim) AutoStatus() string { return c.AutoVerdict.AutoStatus() }

// AppendHistory appends a provenance entry. History is append-only.
func (c *Claim) AppendHistory(action string, actor *string, note string) {
	c.History = append(c.History, HistoryEntry{
		Action: action,
		Actor:  actor,
		At:     time.Now().UTC(),
		Note:   note,
	})
}

// ClaimStats aggregates claim counts and payout figures for the admin
// analytics endpoint.
type ClaimStats struct {
	TotalClaims  int     `json:"totalClaims"`
	Pending      int     `json:"pending"`
	Approved     int     `json:"approved"`
	Rejected     int     `json:"rejected"`
	TotalPayout  float64 `json:"totalPayout"`
	AvgPayout    float64 `json:"avgPayout"`
	CappedClaims int     `json:"cappedClaims"`
}
