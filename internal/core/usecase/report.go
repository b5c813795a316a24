package usecase

import (
	"context"

	"github.com/kirillkom/cottonlog/internal/core/domain"
	"github.com/kirillkom/cottonlog/internal/core/ports"
)

// ReportUseCase answers read-only questions about stored sessions.
type ReportUseCase struct {
	store ports.SessionStore
}

func NewReportUseCase(store ports.SessionStore) *ReportUseCase {
	return &ReportUseCase{store: store}
}

func (uc *ReportUseCase) Frequencies(ctx context.Context, sessionID, field string) ([]domain.FrequencyEntry, error) {
	session, err := uc.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	selector, err := ResolveField(session, field)
	if err != nil {
		return nil, err
	}
	return Frequencies(session.Bales, selector), nil
}

func (uc *ReportUseCase) Summary(ctx context.Context, sessionID string) (domain.SessionSummary, error) {
	session, err := uc.load(ctx, sessionID)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	return Summarize(session), nil
}

func (uc *ReportUseCase) CompletedBales(ctx context.Context, sessionID string) ([]domain.Bale, error) {
	session, err := uc.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return CompletedBales(session), nil
}

func (uc *ReportUseCase) load(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := uc.store.Get(ctx, sessionID)
	if err != nil {
		if domain.IsKind(err, domain.ErrSessionNotFound) {
			return nil, domain.NewStepError(domain.StepLookup, domain.ErrSessionNotFound, err)
		}
		return nil, domain.NewStepError(domain.StepPersistence, domain.ErrStorage, err)
	}
	return session, nil
}
