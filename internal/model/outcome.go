package model

import (
	"encoding/json"
	"time"
)

// RecordStatus is the review label assigned to a processed record.
type RecordStatus string

const (
	RecordStatusValid       RecordStatus = "Valid"
	RecordStatusNeedsReview RecordStatus = "Needs Review"
)

// ValidThreshold is the score a record must exceed to be labelled Valid.
const ValidThreshold = 0.8

// StatusForScore maps a confidence score to its review label.
func StatusForScore(score float64) RecordStatus {
	if score > ValidThreshold {
		return RecordStatusValid
	}
	return RecordStatusNeedsReview
}

// ValidationOutcome is the registry validator's verdict for one record.
type ValidationOutcome struct {
	Valid          bool            `json:"valid"`
	Reason         string          `json:"reason,omitempty"`
	Identifier     string          `json:"npi,omitempty"`
	Status         string          `json:"status,omitempty"`
	Classification string          `json:"primary_taxonomy,omitempty"`
	NameMatch      float64         `json:"match_score"`
	RegistryName   string          `json:"registry_name,omitempty"`
	LastUpdated    string          `json:"last_updated,omitempty"`
	Raw            json.RawMessage `json:"api_data,omitempty"`
}

// InvalidValidation builds an invalid outcome with the given reason.
func InvalidValidation(reason string) ValidationOutcome {
	return ValidationOutcome{Valid: false, Reason: reason}
}

// PresenceOutcome is the result of checking a claimed website.
type PresenceOutcome struct {
	URL        string `json:"url"`
	Reachable  bool   `json:"valid"`
	StatusCode int    `json:"status_code,omitempty"`
	// Corroborated is nil when no expected phone number was supplied.
	Corroborated *bool  `json:"phone_on_page,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Enrichment holds best-effort supplementary attributes for a valid record.
type Enrichment struct {
	Specialties   []string `json:"specialties"`
	Certification string   `json:"certification"`
	// Fallback names why the oracle result was replaced by an empty one.
	Fallback string `json:"fallback,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
}

// Empty reports whether no attributes were produced.
func (e Enrichment) Empty() bool {
	return len(e.Specialties) == 0 && e.Certification == ""
}

// RecordOutcome is the fully processed result for one input row.
type RecordOutcome struct {
	Record     ProviderRecord    `json:"record"`
	Validation ValidationOutcome `json:"api_data"`
	Presence   *PresenceOutcome  `json:"website_validation,omitempty"`
	Enrichment *Enrichment       `json:"enriched,omitempty"`
	Score      float64           `json:"confidence_score"`
	Issues     []string          `json:"issues"`
	Status     RecordStatus      `json:"validation_status"`
}

// Priority ranks an action item in the batch report.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
)

// ActionItem is a flagged provider that needs manual follow-up.
type ActionItem struct {
	Provider string   `json:"provider"`
	Issues   []string `json:"issues"`
	Priority Priority `json:"priority"`
}

// BatchReport summarizes a completed batch.
type BatchReport struct {
	GeneratedAt time.Time    `json:"timestamp"`
	Total       int          `json:"total_processed"`
	Valid       int          `json:"valid_providers"`
	Flagged     int          `json:"flagged_providers"`
	Accuracy    float64      `json:"accuracy_rate"`
	ActionItems []ActionItem `json:"action_items"`
}
