package api

import (
	"github.com/starford/playbooksync/internal/history"
	"github.com/starford/playbooksync/internal/models"
)

// RunListResponse wraps paginated run listings.
type RunListResponse struct {
	Runs   []history.RunListItem `json:"runs" validate:"required"`
	Total  int                   `json:"total" example:"42" validate:"required"`
	Limit  int                   `json:"limit" example:"20"`
	Offset int                   `json:"offset" example:"0"`
}

// MatchListResponse wraps a run's match records.
type MatchListResponse struct {
	RunID   string               `json:"run_id" validate:"required"`
	Matches []models.MatchRecord `json:"matches" validate:"required"`
}

// DocumentListResponse wraps the cached documents.
type DocumentListResponse struct {
	Documents []history.DocumentItem `json:"documents" validate:"required"`
}
