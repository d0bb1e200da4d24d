// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

// Package api exposes the read-only ship catalog over HTTP, plus sync
// status and manual trigger endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/hangarbay/fleetindex/internal/config"
	"github.com/hangarbay/fleetindex/internal/logging"
	"github.com/hangarbay/fleetindex/internal/models"
	"github.com/hangarbay/fleetindex/internal/store"
	syncpkg "github.com/hangarbay/fleetindex/internal/sync"
	"github.com/hangarbay/fleetindex/internal/validation"
)

// ShipReader is the slice of the document store the API serves from.
type ShipReader interface {
	Search(ctx context.Context, filter *models.SearchFilter) (*models.PagedShips, error)
	FindByIDOrSlug(ctx context.Context, idOrSlug string) (*models.Ship, error)
	FindManyByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Ship, error)
	AggregateManufacturers(ctx context.Context) ([]models.ManufacturerCount, error)
	GetShipCount(ctx context.Context) (int, error)
	LatestAudit(ctx context.Context) (*models.SyncAudit, error)
	ListAudits(ctx context.Context, limit int) ([]models.SyncAudit, error)
}

// SyncControl is the orchestrator surface the API needs for status and
// manual triggers.
type SyncControl interface {
	RunSync(ctx context.Context) (*models.SyncAudit, error)
	IsRunning() bool
}

// Handler holds the API endpoint implementations.
type Handler struct {
	store   ShipReader
	manager SyncControl
	cfg     *config.APIConfig
}

// NewHandler creates the API handler set.
func NewHandler(st ShipReader, manager SyncControl, cfg *config.APIConfig) *Handler {
	return &Handler{
		store:   st,
		manager: manager,
		cfg:     cfg,
	}
}

// Ships handles GET /api/v1/ships: filtered, paginated catalog search.
func (h *Handler) Ships(w http.ResponseWriter, r *http.Request) {
	filter := &models.SearchFilter{
		Manufacturer:     r.URL.Query().Get("manufacturer"),
		Size:             r.URL.Query().Get("size"),
		Classification:   r.URL.Query().Get("classification"),
		ProductionStatus: r.URL.Query().Get("production_status"),
		Search:           r.URL.Query().Get("search"),
		Page:             getIntParam(r, "page", 1),
		PageSize:         getIntParam(r, "per_page", h.cfg.DefaultPageSize),
	}
	if filter.PageSize > h.cfg.MaxPageSize {
		filter.PageSize = h.cfg.MaxPageSize
	}

	if err := validation.ValidateStruct(filter); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	result, err := h.store.Search(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to search ships", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Success: true,
		Data:    result,
	})
}

// Ship handles GET /api/v1/ships/{idOrSlug}: single-document lookup,
// dispatching on whether the path segment parses as a UUID.
func (h *Handler) Ship(w http.ResponseWriter, r *http.Request) {
	idOrSlug := chi.URLParam(r, "idOrSlug")
	if idOrSlug == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing ship id or slug", nil)
		return
	}

	ship, err := h.store.FindByIDOrSlug(r.Context(), idOrSlug)
	if errors.Is(err, store.ErrShipNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Ship not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load ship", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Success: true,
		Data:    ship,
	})
}

// batchRequest is the POST body for the batch lookup endpoint.
type batchRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

// ShipsBatch handles POST /api/v1/ships/batch: up to MaxBatchIDs ships
// in a single round trip. Unknown ids are silently absent.
func (h *Handler) ShipsBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if len(req.IDs) > h.cfg.MaxBatchIDs {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Too many ids requested", nil)
		return
	}

	ships, err := h.store.FindManyByExternalIDs(r.Context(), req.IDs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load ships", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Success: true,
		Data:    ships,
		Meta:    map[string]any{"requested": len(req.IDs), "found": len(ships)},
	})
}

// Manufacturers handles GET /api/v1/manufacturers: per-manufacturer ship
// counts sorted by name.
func (h *Handler) Manufacturers(w http.ResponseWriter, r *http.Request) {
	manufacturers, err := h.store.AggregateManufacturers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to aggregate manufacturers", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Success: true,
		Data:    manufacturers,
	})
}

// SyncStatus handles GET /api/v1/sync/status: the latest audit record,
// recent history, and whether a run is in flight.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"running": h.manager.IsRunning(),
	}

	latest, err := h.store.LatestAudit(r.Context())
	switch {
	case errors.Is(err, store.ErrAuditNotFound):
		status["last_run"] = nil
	case err != nil:
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load sync status", err)
		return
	default:
		status["last_run"] = latest
	}

	if limit := getIntParam(r, "history", 0); limit > 0 {
		history, err := h.store.ListAudits(r.Context(), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load sync history", err)
			return
		}
		status["history"] = history
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Success: true,
		Data:    status,
	})
}

// SyncTrigger handles POST /api/v1/sync/trigger: starts a run in the
// background. Returns 409 while another run holds the lock.
func (h *Handler) SyncTrigger(w http.ResponseWriter, r *http.Request) {
	if h.manager.IsRunning() {
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", "A sync run is already in progress", nil)
		return
	}

	go func() {
		// Detached from the request context: the run outlives the
		// HTTP exchange.
		audit, err := h.manager.RunSync(context.Background())
		if errors.Is(err, syncpkg.ErrSyncInProgress) {
			logging.Warn().Msg("Manual sync lost the race to another run")
			return
		}
		if err != nil {
			logging.Error().Err(err).Msg("Manually triggered sync failed to start")
			return
		}
		logging.Info().Str("status", string(audit.Status)).Msg("Manually triggered sync completed")
	}()

	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Success: true,
		Data:    map[string]any{"triggered": true},
	})
}

// Health handles GET /api/v1/health: liveness plus a store probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.GetShipCount(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_ERROR", "Document store unavailable", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Success: true,
		Data: map[string]any{
			"status":       "ok",
			"ships":        count,
			"sync_running": h.manager.IsRunning(),
			"time":         time.Now().UTC(),
		},
	})
}
