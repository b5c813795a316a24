package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/cottonlog/internal/core/domain"
	"github.com/kirillkom/cottonlog/internal/core/ports"
)

type RecompletePolicy string

const (
	RecompleteReject    RecompletePolicy = "reject"
	RecompleteOverwrite RecompletePolicy = "overwrite"
)

type DuplicatePolicy string

const (
	DuplicatesAllow  DuplicatePolicy = "allow"
	DuplicatesReject DuplicatePolicy = "reject"
)

const maxQualityColumns = 2

type WorkflowOptions struct {
	RecompletePolicy RecompletePolicy
	ManualDuplicates DuplicatePolicy

	Now     func() time.Time
	NewID   func() string
	Logger  *slog.Logger
	Metrics ports.WorkflowMetrics
}

func (o WorkflowOptions) normalize() WorkflowOptions {
	out := o
	if out.RecompletePolicy != RecompleteOverwrite {
		out.RecompletePolicy = RecompleteReject
	}
	if out.ManualDuplicates != DuplicatesReject {
		out.ManualDuplicates = DuplicatesAllow
	}
	if out.Now == nil {
		out.Now = func() time.Time { return time.Now().UTC() }
	}
	if out.NewID == nil {
		out.NewID = uuid.NewString
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Metrics == nil {
		out.Metrics = noopMetrics{}
	}
	return out
}

// WorkflowUseCase drives the bale lifecycle. Sessions are threaded through
// calls as values: every transition works on a clone and the caller only
// receives the new snapshot after it has been persisted.
type WorkflowUseCase struct {
	store    ports.SessionStore
	matcher  ports.MatchIndex
	assessor ports.QualityAssessor
	events   ports.EventPublisher
	opts     WorkflowOptions
}

func NewWorkflowUseCase(
	store ports.SessionStore,
	matcher ports.MatchIndex,
	assessor ports.QualityAssessor,
	events ports.EventPublisher,
	opts WorkflowOptions,
) *WorkflowUseCase {
	return &WorkflowUseCase{
		store:    store,
		matcher:  matcher,
		assessor: assessor,
		events:   events,
		opts:     opts.normalize(),
	}
}

func (uc *WorkflowUseCase) CreateManualSession(ctx context.Context, setup ports.ManualSetup) (*domain.Session, domain.Bale, error) {
	lot := strings.TrimSpace(setup.Lot)
	start, err := uc.validateSetup(lot, setup.StartNumber)
	if err != nil {
		return nil, domain.Bale{}, err
	}

	session := &domain.Session{
		ID:        uc.opts.NewID(),
		Name:      fmt.Sprintf("Manual Lot %s", lot),
		CreatedAt: uc.opts.Now(),
		Mode:      domain.SessionModeManual,
		Config: domain.SessionConfig{
			StartMillLot:    lot,
			StartMillBale:   start,
			CurrentMillBale: start,
		},
		Bales:  []domain.Bale{},
		Status: domain.SessionStatusActive,
	}
	if err := uc.persist(ctx, session); err != nil {
		return nil, domain.Bale{}, err
	}

	uc.opts.Logger.Info("session_created", "session_id", session.ID, "mode", session.Mode, "mill_lot", lot, "start_mill_bale", start)
	return session, uc.ResumeSequential(session), nil
}

func (uc *WorkflowUseCase) CreateInventorySession(ctx context.Context, setup ports.InventorySetup) (*domain.Session, error) {
	idColumn := strings.TrimSpace(setup.IDColumn)
	if idColumn == "" {
		return nil, uc.fail(domain.StepSetup, domain.ErrValidation, errors.New("id column must be chosen"))
	}
	lot := strings.TrimSpace(setup.Lot)
	start, err := uc.validateSetup(lot, setup.StartNumber)
	if err != nil {
		return nil, err
	}

	quality := make([]string, 0, maxQualityColumns)
	for _, column := range setup.QualityColumns {
		if column = strings.TrimSpace(column); column != "" {
			quality = append(quality, column)
		}
	}
	if len(quality) > maxQualityColumns {
		return nil, uc.fail(domain.StepSetup, domain.ErrValidation, fmt.Errorf("at most %d quality columns, got %d", maxQualityColumns, len(quality)))
	}
	if len(setup.Table.Rows) == 0 {
		return nil, uc.fail(domain.StepSetup, domain.ErrValidation, errors.New("imported table has no rows"))
	}
	if len(setup.Table.Columns) > 0 {
		for _, column := range append([]string{idColumn}, quality...) {
			if !containsColumn(setup.Table.Columns, column) {
				return nil, uc.fail(domain.StepSetup, domain.ErrValidation, fmt.Errorf("column %q is not present in the import", column))
			}
		}
	}

	mapping := &domain.ColumnMapping{IDColumn: idColumn}
	if len(quality) > 0 {
		mapping.Value1, mapping.Value1Name = quality[0], quality[0]
	}
	if len(quality) > 1 {
		mapping.Value2, mapping.Value2Name = quality[1], quality[1]
	}

	mapped := append([]string{idColumn}, quality...)
	bales := make([]domain.Bale, 0, len(setup.Table.Rows))
	for _, row := range setup.Table.Rows {
		id := strings.TrimSpace(domain.ScalarString(row[idColumn]))
		values := make(map[string]any, len(mapped))
		for _, column := range mapped {
			if v, ok := row[column]; ok && v != nil {
				values[column] = v
			}
		}
		// Lot and number stay as placeholders until completion.
		bales = append(bales, domain.Bale{
			ID:           id,
			OriginalID:   id,
			MappedValues: values,
			Status:       domain.BaleStatusPending,
		})
	}

	now := uc.opts.Now()
	session := &domain.Session{
		ID:        uc.opts.NewID(),
		Name:      fmt.Sprintf("Lot %s (%s)", lot, now.Format("2006-01-02")),
		CreatedAt: now,
		Mode:      domain.SessionModeInventory,
		Config: domain.SessionConfig{
			StartMillLot:    lot,
			StartMillBale:   start,
			CurrentMillBale: start,
			ColumnMapping:   mapping,
		},
		Bales:  bales,
		Status: domain.SessionStatusActive,
	}
	if err := uc.persist(ctx, session); err != nil {
		return nil, err
	}

	uc.opts.Logger.Info("session_created", "session_id", session.ID, "mode", session.Mode, "mill_lot", lot, "rows", len(bales))
	return session, nil
}

// UpdateNumbering changes lot and start number. Both are set-once: the change
// is rejected as soon as any bale has been completed.
func (uc *WorkflowUseCase) UpdateNumbering(ctx context.Context, session *domain.Session, lot string, start int) (*domain.Session, error) {
	if session.HasCompleted() || (session.Mode == domain.SessionModeManual && len(session.Bales) > 0) {
		return nil, uc.fail(domain.StepSetup, domain.ErrValidation, errors.New("numbering is locked once a bale exists"))
	}
	lot = strings.TrimSpace(lot)
	start, err := uc.validateSetup(lot, start)
	if err != nil {
		return nil, err
	}

	next := session.Clone()
	next.Config.StartMillLot = lot
	next.Config.StartMillBale = start
	next.Config.CurrentMillBale = start
	if err := uc.persist(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// SelectBale puts a bale in focus. Inventory sessions resolve baleID against
// the collection; manual sessions synthesize a pending bale for it.
func (uc *WorkflowUseCase) SelectBale(session *domain.Session, baleID string) (domain.Bale, error) {
	baleID = strings.TrimSpace(baleID)
	if session.Mode == domain.SessionModeInventory {
		idx := session.IndexOf(baleID)
		if idx < 0 {
			return domain.Bale{}, uc.fail(domain.StepLookup, domain.ErrNotFound, fmt.Errorf("id=%s", baleID))
		}
		return session.Bales[idx].Clone(), nil
	}

	if baleID == "" {
		baleID = fmt.Sprintf("MANUAL-%d", uc.opts.Now().UnixMilli())
	}
	return domain.NewPendingBale(baleID, session.Config), nil
}

// ResumeSequential returns the pending candidate for the next sequential
// number. It has no side effects.
func (uc *WorkflowUseCase) ResumeSequential(session *domain.Session) domain.Bale {
	lot, number := domain.PeekNext(session.Config)
	return domain.NewPendingBale(domain.CandidateID(lot, number), session.Config)
}

func (uc *WorkflowUseCase) Search(session *domain.Session, query string) []domain.Bale {
	if session.Mode != domain.SessionModeInventory || strings.TrimSpace(query) == "" {
		return nil
	}
	return uc.matcher.Search(query, session.Bales)
}

// Scan resolves a decoded identifier by exact equality first. Without an exact
// hit, manual sessions start a new pending bale and inventory sessions report
// the id as not found.
func (uc *WorkflowUseCase) Scan(session *domain.Session, decoded string) (domain.ScanResult, error) {
	text := strings.TrimSpace(decoded)
	if text == "" {
		return domain.ScanResult{}, uc.fail(domain.StepLookup, domain.ErrValidation, errors.New("decoded text is empty"))
	}

	if idx := session.IndexOf(text); idx >= 0 {
		return domain.ScanResult{Bale: session.Bales[idx].Clone(), Found: true}, nil
	}
	if session.Mode == domain.SessionModeManual {
		return domain.ScanResult{Bale: domain.NewPendingBale(text, session.Config), Created: true}, nil
	}
	return domain.ScanResult{Bale: domain.Bale{ID: text, OriginalID: text, Status: domain.BaleStatusPending}}, nil
}

func (uc *WorkflowUseCase) ScanFailed(reason domain.DecoderReason) error {
	return uc.fail(domain.StepLookup, domain.ErrDecoder, &domain.DecoderError{Reason: reason})
}

// RecordWeight parses and validates weightText. The bale is not modified.
func (uc *WorkflowUseCase) RecordWeight(bale domain.Bale, weightText string) (float64, error) {
	text := strings.TrimSpace(weightText)
	if text == "" {
		return 0, uc.fail(domain.StepWeightEntry, domain.ErrInvalidWeight, fmt.Errorf("weight is required for bale %s", bale.ID))
	}
	weight, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, uc.fail(domain.StepWeightEntry, domain.ErrInvalidWeight, fmt.Errorf("parse %q: %w", text, err))
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return 0, uc.fail(domain.StepWeightEntry, domain.ErrInvalidWeight, fmt.Errorf("weight %q is not finite", text))
	}
	return weight, nil
}

// AssessQuality asks the assessment collaborator about bale. The text is only
// stored when passed to CompleteBale.
func (uc *WorkflowUseCase) AssessQuality(ctx context.Context, session *domain.Session, bale domain.Bale) (string, error) {
	if uc.assessor == nil {
		return "", uc.fail(domain.StepAssessment, domain.ErrValidation, errors.New("quality assessment is not configured"))
	}

	input := domain.AssessmentInput{
		Field1:       "N/A",
		Field2:       "N/A",
		MappedValues: bale.Clone().MappedValues,
	}
	if mapping := session.Config.ColumnMapping; mapping != nil {
		input.Field1Name, input.Field2Name = mapping.Value1Name, mapping.Value2Name
		if v, ok := bale.Value(mapping.Value1); ok {
			input.Field1 = v
		}
		if v, ok := bale.Value(mapping.Value2); ok {
			input.Field2 = v
		}
	}

	text, err := uc.assessor.Assess(ctx, input)
	if err != nil {
		return "", uc.fail(domain.StepAssessment, domain.ErrTemporary, err)
	}
	return text, nil
}

// CompleteBale assigns the next lot/number to bale, merges it into the session
// (replace in place for inventory, append for manual), advances the counter and
// persists the result as one snapshot. On any failure the caller's session is
// untouched and the counter is not advanced.
func (uc *WorkflowUseCase) CompleteBale(
	ctx context.Context,
	session *domain.Session,
	bale domain.Bale,
	weight float64,
	assessment *string,
) (*ports.Completion, error) {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return nil, uc.fail(domain.StepWeightEntry, domain.ErrInvalidWeight, fmt.Errorf("weight %v is not finite", weight))
	}

	next := session.Clone()
	completed, idx, err := uc.merge(next, bale)
	if err != nil {
		return nil, err
	}

	lot, number := domain.PeekNext(next.Config)
	now := uc.opts.Now()
	completed.MillLot = lot
	completed.MillBaleNumber = number
	completed.Weight = &weight
	completed.Status = domain.BaleStatusCompleted
	completed.ScannedAt = &now
	completed.QualityAssessment = nil
	if assessment != nil && strings.TrimSpace(*assessment) != "" {
		text := *assessment
		completed.QualityAssessment = &text
	}
	if completed.OriginalID == "" {
		completed.OriginalID = completed.ID
	}
	if completed.MappedValues == nil {
		completed.MappedValues = map[string]any{}
	}

	if idx >= 0 {
		next.Bales[idx] = completed
	} else {
		next.Bales = append(next.Bales, completed)
	}
	next.Config = domain.CommitAdvance(next.Config)

	if err := uc.persist(ctx, next); err != nil {
		return nil, err
	}

	uc.opts.Metrics.ObserveCompletion(next.Mode)
	uc.opts.Logger.Info("bale_completed",
		"session_id", next.ID,
		"mode", next.Mode,
		"bale_id", completed.ID,
		"mill_lot", completed.MillLot,
		"mill_bale_number", completed.MillBaleNumber,
	)
	uc.publishCompleted(ctx, next, completed)

	result := &ports.Completion{Session: next, Completed: completed.Clone()}
	if next.Mode == domain.SessionModeManual {
		candidate := uc.ResumeSequential(next)
		result.Next = &candidate
	}
	return result, nil
}

func (uc *WorkflowUseCase) ListSessions(ctx context.Context) ([]domain.Session, error) {
	sessions, err := uc.store.GetAll(ctx)
	if err != nil {
		return nil, uc.fail(domain.StepPersistence, domain.ErrStorage, err)
	}
	return sessions, nil
}

// ResumeSession loads a stored session. Manual sessions never persist their
// pending bale, so the sequential candidate is rebuilt here.
func (uc *WorkflowUseCase) ResumeSession(ctx context.Context, id string) (*domain.Session, *domain.Bale, error) {
	session, err := uc.store.Get(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.ErrSessionNotFound) {
			return nil, nil, uc.fail(domain.StepLookup, domain.ErrSessionNotFound, err)
		}
		return nil, nil, uc.fail(domain.StepPersistence, domain.ErrStorage, err)
	}
	if session.Mode != domain.SessionModeManual {
		return session, nil, nil
	}
	candidate := uc.ResumeSequential(session)
	return session, &candidate, nil
}

func (uc *WorkflowUseCase) DeleteSession(ctx context.Context, id string) error {
	if err := uc.store.Delete(ctx, id); err != nil {
		if domain.IsKind(err, domain.ErrSessionNotFound) {
			return uc.fail(domain.StepLookup, domain.ErrSessionNotFound, err)
		}
		return uc.fail(domain.StepPersistence, domain.ErrStorage, err)
	}
	uc.opts.Logger.Info("session_deleted", "session_id", id)
	return nil
}

// merge resolves the record a completion applies to and its position in the
// collection (-1 means append), enforcing the re-completion and duplicate
// policies. Among inventory rows sharing an id the first pending one wins.
func (uc *WorkflowUseCase) merge(session *domain.Session, bale domain.Bale) (domain.Bale, int, error) {
	if session.Mode == domain.SessionModeInventory {
		idx := inventoryTarget(session, bale.ID)
		if idx < 0 {
			return domain.Bale{}, -1, uc.fail(domain.StepCompletion, domain.ErrNotFound, fmt.Errorf("id=%s is not in session %s", bale.ID, session.ID))
		}
		existing := session.Bales[idx]
		if existing.Status == domain.BaleStatusCompleted && uc.opts.RecompletePolicy == RecompleteReject {
			return domain.Bale{}, -1, uc.fail(domain.StepCompletion, domain.ErrAlreadyCompleted, fmt.Errorf("id=%s mill bale #%d", existing.ID, existing.MillBaleNumber))
		}
		return existing.Clone(), idx, nil
	}

	if strings.TrimSpace(bale.ID) == "" {
		return domain.Bale{}, -1, uc.fail(domain.StepCompletion, domain.ErrValidation, errors.New("bale id is empty"))
	}
	if uc.opts.ManualDuplicates == DuplicatesReject && session.IndexOf(bale.ID) >= 0 {
		return domain.Bale{}, -1, uc.fail(domain.StepCompletion, domain.ErrDuplicateID, fmt.Errorf("id=%s", bale.ID))
	}
	return bale.Clone(), -1, nil
}

func inventoryTarget(session *domain.Session, id string) int {
	first := -1
	for i := range session.Bales {
		if session.Bales[i].ID != id {
			continue
		}
		if session.Bales[i].Status == domain.BaleStatusPending {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

func (uc *WorkflowUseCase) persist(ctx context.Context, session *domain.Session) error {
	start := time.Now()
	err := uc.store.Put(ctx, session)
	uc.opts.Metrics.ObservePersist(time.Since(start), err)
	if err != nil {
		return uc.fail(domain.StepPersistence, domain.ErrStorage, err)
	}
	return nil
}

func (uc *WorkflowUseCase) publishCompleted(ctx context.Context, session *domain.Session, bale domain.Bale) {
	if uc.events == nil {
		return
	}
	event := domain.BaleCompletedEvent{
		SessionID:      session.ID,
		Mode:           session.Mode,
		BaleID:         bale.ID,
		MillLot:        bale.MillLot,
		MillBaleNumber: bale.MillBaleNumber,
		Weight:         *bale.Weight,
		CompletedAt:    bale.ScannedAt.Format(time.RFC3339Nano),
	}
	if err := uc.events.PublishBaleCompleted(ctx, event); err != nil {
		uc.opts.Logger.Warn("publish_bale_completed_failed", "session_id", session.ID, "bale_id", bale.ID, "error", err)
	}
}

func (uc *WorkflowUseCase) validateSetup(lot string, start int) (int, error) {
	if lot == "" {
		return 0, uc.fail(domain.StepSetup, domain.ErrValidation, errors.New("mill lot is required"))
	}
	if start == 0 {
		start = 1
	}
	if start < 1 {
		return 0, uc.fail(domain.StepSetup, domain.ErrValidation, fmt.Errorf("start mill bale must be >= 1, got %d", start))
	}
	return start, nil
}

func (uc *WorkflowUseCase) fail(step domain.Step, kind error, err error) error {
	uc.opts.Metrics.ObserveFailure(step)
	uc.opts.Logger.Warn("workflow_step_failed", "step", step, "kind", kind.Error(), "error", err)
	return domain.NewStepError(step, kind, err)
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

type noopMetrics struct{}

func (noopMetrics) ObserveCompletion(domain.SessionMode) {}
func (noopMetrics) ObserveFailure(domain.Step)           {}
func (noopMetrics) ObservePersist(time.Duration, error)  {}
