// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package models

// SearchFilter holds the query-API filter and pagination parameters for
// the ship search endpoint. Zero values mean "no filter".
type SearchFilter struct {
	Manufacturer     string `validate:"omitempty,max=100"`
	Size             string `validate:"omitempty,max=50"`
	Classification   string `validate:"omitempty,max=50"`
	ProductionStatus string `validate:"omitempty,max=50"`
	Search           string `validate:"omitempty,max=200"`
	Page             int    `validate:"min=1"`
	PageSize         int    `validate:"min=1,max=100"`
}

// PagedShips is the paginated search result. The contract is identical
// whichever search code path (index or scan fallback) produced it.
type PagedShips struct {
	Items      []Ship `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Total      int    `json:"total"`
	TotalPages int    `json:"total_pages"`
}

// APIResponse is the standard success envelope for query-API responses.
type APIResponse struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// APIError is the standard error envelope.
type APIError struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
