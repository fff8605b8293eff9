package worker

import (
	"context"
	"fmt"
	"log/slog"

	"casebook/internal/amqp"
	"casebook/internal/log"
	"casebook/internal/sheets"
	"casebook/internal/store"
)

// SyncWorker mirrors case events into the spreadsheet ledger.
type SyncWorker struct {
	storage store.CaseStore
	sheets  sheets.CaseWriter
	limit   int
}

func NewSyncWorker(storage store.CaseStore, sheets sheets.CaseWriter, limit int) *SyncWorker {
	return &SyncWorker{
		storage: storage,
		sheets:  sheets,
		limit:   store.ClampLimit(limit),
	}
}

// HandleCaseEvent applies a single case event from AMQP.
func (w *SyncWorker) HandleCaseEvent(ctx context.Context, msg *amqp.CaseEventMessage) error {
	slog.InfoContext(ctx, "Processing case event",
		log.FieldAction, msg.Action,
		log.FieldCaseID, msg.CaseID,
		log.FieldOwnerID, msg.OwnerID)

	switch msg.Action {
	case amqp.ActionCreated, amqp.ActionUpdated:
		if err := w.sheets.Upsert(ctx, *msg.Case); err != nil {
			return fmt.Errorf("upsert case %s: %w", msg.CaseID, err)
		}
	case amqp.ActionDeleted:
		if err := w.sheets.Delete(ctx, msg.CaseID); err != nil {
			return fmt.Errorf("delete case %s: %w", msg.CaseID, err)
		}
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}

// Resync rewrites the ledger rows of every listed owner from the store.
// It is the backup path for events lost while the worker was down.
func (w *SyncWorker) Resync(ctx context.Context, owners []string) error {
	synced, failed := 0, 0
	for _, owner := range owners {
		cases, err := w.storage.List(ctx, owner, w.limit)
		if err != nil {
			return fmt.Errorf("list cases for %s: %w", owner, err)
		}
		for _, c := range cases {
			if err := w.sheets.Upsert(ctx, c); err != nil {
				slog.ErrorContext(ctx, "Failed to resync case",
					log.FieldCaseID, c.ID,
					log.FieldError, err.Error())
				failed++
				continue
			}
			synced++
		}
	}

	slog.InfoContext(ctx, "Startup resync completed",
		"owners", len(owners),
		"synced", synced,
		"errors", failed)
	return nil
}
