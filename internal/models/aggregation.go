package models

import "time"

// Upstream source names, used in logs, metrics and AggregationResult.Degraded.
const (
	SourceCollections = "collections"
	SourcePlans       = "plans"
	SourceSession     = "session"
)

// AggregationResult is the reconciled output of one aggregation cycle.
type AggregationResult struct {
	CycleID     string             `json:"cycleId"`
	Collections []Collection       `json:"collections"`
	Plans       []SubscriptionPlan `json:"plans"`
	User        *User              `json:"user"`
	Degraded    []string           `json:"degraded"`
	GeneratedAt time.Time          `json:"generatedAt"`
}
