package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/cottonlog/internal/core/domain"
	"github.com/kirillkom/cottonlog/internal/core/ports"
)

const (
	LedgerRecorded  = "recorded"
	LedgerDuplicate = "duplicate"
	LedgerError     = "error"
)

// ProjectionUseCase consumes completion events: it appends them to the
// completion ledger and regenerates the session export.
type ProjectionUseCase struct {
	store    ports.SessionStore
	ledger   ports.CompletionLedger
	exporter ports.TableExporter
	objects  ports.ObjectStorage
	metrics  ports.ProjectionMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewProjectionUseCase builds the projector. ledger may be nil when the
// backend keeps no ledger; metrics and logger may be nil.
func NewProjectionUseCase(
	store ports.SessionStore,
	ledger ports.CompletionLedger,
	exporter ports.TableExporter,
	objects ports.ObjectStorage,
	metrics ports.ProjectionMetrics,
	logger *slog.Logger,
) *ProjectionUseCase {
	if metrics == nil {
		metrics = noopProjectionMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectionUseCase{
		store:    store,
		ledger:   ledger,
		exporter: exporter,
		objects:  objects,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ExportKey is the object key of a session's regenerated export.
func ExportKey(sessionID string) string {
	return sessionID + ".xlsx"
}

func (uc *ProjectionUseCase) Handle(ctx context.Context, event domain.BaleCompletedEvent) error {
	if completedAt, err := time.Parse(time.RFC3339Nano, event.CompletedAt); err == nil {
		uc.metrics.ObserveEventLag(uc.now().Sub(completedAt))
	}

	if uc.ledger != nil {
		recorded, err := uc.ledger.Record(ctx, event)
		if err != nil {
			uc.metrics.ObserveLedger(LedgerError)
			return fmt.Errorf("record completion: %w", err)
		}
		if !recorded {
			uc.metrics.ObserveLedger(LedgerDuplicate)
			uc.logger.Info("completion_already_recorded", "session_id", event.SessionID, "mill_lot", event.MillLot, "mill_bale_number", event.MillBaleNumber)
			return nil
		}
		uc.metrics.ObserveLedger(LedgerRecorded)
	}

	return uc.regenerateExport(ctx, event.SessionID)
}

func (uc *ProjectionUseCase) regenerateExport(ctx context.Context, sessionID string) error {
	session, err := uc.store.Get(ctx, sessionID)
	if err != nil {
		if domain.IsKind(err, domain.ErrSessionNotFound) {
			uc.logger.Info("export_skipped_session_deleted", "session_id", sessionID)
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	uc.metrics.StartExport()
	start := time.Now()
	var buf bytes.Buffer
	err = uc.exporter.Export(ctx, &buf, session)
	if err == nil {
		err = uc.objects.Save(ctx, ExportKey(session.ID), &buf)
	}
	uc.metrics.FinishExport(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("regenerate export: %w", err)
	}

	uc.logger.Info("export_regenerated", "session_id", session.ID, "bales", len(session.Bales))
	return nil
}

type noopProjectionMetrics struct{}

func (noopProjectionMetrics) ObserveEventLag(time.Duration)     {}
func (noopProjectionMetrics) ObserveLedger(string)              {}
func (noopProjectionMetrics) StartExport()                      {}
func (noopProjectionMetrics) FinishExport(time.Duration, error) {}
