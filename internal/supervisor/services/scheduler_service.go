// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package services

import (
	"context"
	"fmt"
)

// Lifecycle is implemented by components with Start/Stop semantics,
// notably the sync scheduler.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
}

// LifecycleService adapts a Start/Stop component to suture.Service.
type LifecycleService struct {
	component Lifecycle
	name      string
}

// NewLifecycleService wraps a Start/Stop component for supervision.
func NewLifecycleService(component Lifecycle, name string) *LifecycleService {
	return &LifecycleService{
		component: component,
		name:      name,
	}
}

// Serve implements suture.Service: start the component, block until the
// context ends, then stop it.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s failed to start: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.component.Stop(); err != nil {
		return fmt.Errorf("%s failed to stop: %w", s.name, err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *LifecycleService) String() string {
	return s.name
}
