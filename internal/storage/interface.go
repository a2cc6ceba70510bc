// Package storage defines the storage interface for analysis runs.
package storage

import (
	"context"

	"github.com/nordlys/bugsight/pkg/models"
)

// Storage stores and retrieves completed analysis runs.
// Implementations must be safe for concurrent use.
type Storage interface {
	// PutRun stores a result under summary.ID, replacing any previous
	// run with the same ID.
	PutRun(ctx context.Context, summary models.RunSummary, result *models.AnalysisResult) error

	// GetRun returns the result stored under id, or models.ErrNotFound.
	GetRun(ctx context.Context, id string) (*models.AnalysisResult, error)

	// ListRuns returns summaries of all stored runs, newest first.
	ListRuns(ctx context.Context) ([]models.RunSummary, error)

	// DeleteRun removes a run; deleting an unknown ID is not an error.
	DeleteRun(ctx context.Context, id string) error

	// Close releases backend resources (DB connections).
	Close() error
}
