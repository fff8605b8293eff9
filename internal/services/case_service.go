package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"casebook/internal/amqp"
	"casebook/internal/core"
	"casebook/internal/log"
	"casebook/internal/store"
)

var _ store.CaseStore = (*CaseService)(nil)

// EventPublisher announces committed case writes.
type EventPublisher interface {
	PublishCaseEvent(ctx context.Context, action string, c core.CaseEntry) error
}

// CaseService is a store.CaseStore that publishes an event after every
// successful write. Publishing is best effort: a failed publish is logged
// and the write still succeeds.
type CaseService struct {
	storage   store.CaseStore
	publisher EventPublisher
}

// NewCaseService wraps s. publisher may be nil when no broker is configured.
func NewCaseService(s store.CaseStore, publisher EventPublisher) *CaseService {
	return &CaseService{storage: s, publisher: publisher}
}

func (s *CaseService) List(ctx context.Context, ownerID string, limit int) ([]core.CaseEntry, error) {
	return s.storage.List(ctx, ownerID, limit)
}

// Create saves the case first, then publishes a created event.
func (s *CaseService) Create(ctx context.Context, ownerID string, f core.CaseFields) (core.CaseEntry, error) {
	c, err := s.storage.Create(ctx, ownerID, f)
	if err != nil {
		return core.CaseEntry{}, err
	}
	s.publish(ctx, amqp.ActionCreated, c)
	return c, nil
}

func (s *CaseService) Update(ctx context.Context, ownerID, id string, f core.CaseFields) (core.CaseEntry, error) {
	c, err := s.storage.Update(ctx, ownerID, id, f)
	if err != nil {
		return core.CaseEntry{}, err
	}
	s.publish(ctx, amqp.ActionUpdated, c)
	return c, nil
}

func (s *CaseService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.storage.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.ActionDeleted, core.CaseEntry{ID: id, OwnerID: ownerID})
	return nil
}

// Hospitals forwards to the wrapped store when it lists hospitals.
func (s *CaseService) Hospitals(ctx context.Context) ([]string, error) {
	if hl, ok := s.storage.(store.HospitalLister); ok {
		return hl.Hospitals(ctx)
	}
	return nil, nil
}

// Ping forwards a readiness probe to the wrapped store.
func (s *CaseService) Ping(ctx context.Context) error {
	if p, ok := s.storage.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *CaseService) publish(ctx context.Context, action string, c core.CaseEntry) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping case event",
			log.FieldAction, action, log.FieldCaseID, c.ID)
		return
	}
	if err := s.publisher.PublishCaseEvent(ctx, action, c); err != nil {
		slog.ErrorContext(ctx, "Failed to publish case event",
			log.FieldAction, action,
			log.FieldCaseID, c.ID,
			log.FieldError, err.Error())
	}
}

// Close closes the wrapped store and the publisher when they support it.
func (s *CaseService) Close() error {
	var errs []error
	if c, ok := s.storage.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
