// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/hangarbay/fleetindex/internal/config"
	"github.com/hangarbay/fleetindex/internal/logging"
	"github.com/hangarbay/fleetindex/internal/metrics"
)

// CircuitBreakerClient wraps FleetClient with a circuit breaker so a
// down or degraded upstream stops being hammered between sync runs.
//
// The breaker uses real time for its interval and timeout windows.
// Tests exercise the wrapped client directly rather than the breaker.
type CircuitBreakerClient struct {
	client *FleetClient
	cb     *gobreaker.CircuitBreaker[*FetchResult]
}

// NewCircuitBreakerClient creates the upstream client behind a breaker.
// The breaker opens after 3 consecutive failed runs and probes recovery
// after 5 minutes; a sync run is a coarse unit, so consecutive failures
// are a stronger signal than a failure-rate window would be.
func NewCircuitBreakerClient(cfg *config.UpstreamConfig) *CircuitBreakerClient {
	metrics.CircuitBreakerState.Set(0) // closed

	cb := gobreaker.NewCircuitBreaker[*FetchResult](gobreaker.Settings{
		Name:        "fleet-upstream",
		MaxRequests: 1,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Upstream circuit breaker state change")
			metrics.CircuitBreakerState.Set(stateToFloat(to))
		},
	})

	return &CircuitBreakerClient{
		client: NewFleetClient(cfg),
		cb:     cb,
	}
}

// FetchAllRecords runs the full pagination pass through the breaker.
// An open breaker fails fast without touching the upstream.
func (c *CircuitBreakerClient) FetchAllRecords(ctx context.Context) (*FetchResult, error) {
	result, err := c.cb.Execute(func() (*FetchResult, error) {
		res, err := c.client.FetchAllRecords(ctx)
		if err != nil {
			return nil, err
		}
		// An empty fetch with errors counts as a breaker failure even
		// though the client reports it as an expected outcome.
		if len(res.Records) == 0 && len(res.Errors) > 0 {
			return res, fmt.Errorf("fetch produced no records: %s", res.Errors[0])
		}
		return res, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Msg("Upstream fetch rejected by open circuit breaker")
			return nil, fmt.Errorf("upstream unavailable: %w", err)
		}
		// The partial result, when present, still matters to the caller.
		if result != nil {
			return result, nil
		}
		return nil, err
	}
	return result, nil
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
