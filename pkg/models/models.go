// Package models defines the core data structures for bugreport analysis.
//
// This package contains the domain models produced by the format parsers
// and consumed by the aggregator and the API layer. Every entity is
// immutable once its producing parser returns; the only post-hoc mutation
// allowed anywhere is attaching InsightCard.DeepAnalysis by id.
package models

import "errors"

// ErrNotFound is returned when a requested item is not found.
// Storage implementations wrap this error when an item doesn't exist.
var ErrNotFound = errors.New("not found")

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank returns the sort rank of a severity; lower sorts first.
// Unknown severities sort after info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

// TimeRange spans the first and last timestamp of an aggregated event run.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
