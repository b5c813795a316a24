package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

func TestCompletionRepositoryRecordIgnoresRedelivery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewCompletionRepository(db)
	event := domain.BaleCompletedEvent{
		SessionID: "s-1", Mode: domain.SessionModeManual, BaleID: "X",
		MillLot: "L9", MillBaleNumber: 5, Weight: 200, CompletedAt: "2026-03-01T09:00:00Z",
	}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO bale_completions").
		WithArgs("s-1", "X", "L9", 5, "manual", 200.0, at, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bale_completions").
		WithArgs("s-1", "X", "L9", 5, "manual", 200.0, at, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.Record(context.Background(), event)
	if err != nil || !created {
		t.Fatalf("first Record() = %v, %v", created, err)
	}
	created, err = repo.Record(context.Background(), event)
	if err != nil || created {
		t.Fatalf("redelivered Record() = %v, %v", created, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompletionRepositoryRecordRejectsBadTimestamp(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	_, err = NewCompletionRepository(db).Record(context.Background(), domain.BaleCompletedEvent{CompletedAt: "yesterday"})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCompletionRepositoryListBySession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"session_id", "bale_id", "mill_lot", "mill_bale_number", "mode", "weight", "completed_at"}).
		AddRow("s-1", "X", "L9", 5, "manual", 200.0, at).
		AddRow("s-1", "Y", "L9", 6, "manual", 150.0, at)
	mock.ExpectQuery("FROM bale_completions").
		WithArgs("s-1").
		WillReturnRows(rows)

	got, err := NewCompletionRepository(db).ListBySession(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(got) != 2 || got[1].MillBaleNumber != 6 || got[0].CompletedAt != "2026-03-01T09:00:00Z" {
		t.Fatalf("unexpected completions %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
