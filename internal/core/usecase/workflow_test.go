package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kirillkom/cottonlog/internal/core/domain"
	"github.com/kirillkom/cottonlog/internal/core/ports"
)

func newWorkflowForTests(store *storeFake, opts WorkflowOptions) *WorkflowUseCase {
	if opts.Now == nil {
		opts.Now = fixedClock()
	}
	if opts.NewID == nil {
		opts.NewID = sequentialIDs()
	}
	return NewWorkflowUseCase(store, &matcherFake{}, nil, nil, opts)
}

func inventoryTable(ids ...string) domain.Table {
	rows := make([]domain.Row, 0, len(ids))
	for i, id := range ids {
		rows = append(rows, domain.Row{"Bale": id, "Mic": fmt.Sprintf("4.%d", i), "Strength": "29"})
	}
	return domain.Table{Columns: []string{"Bale", "Mic", "Strength"}, Rows: rows}
}

func newInventorySession(t *testing.T, uc *WorkflowUseCase, ids ...string) *domain.Session {
	t.Helper()
	session, err := uc.CreateInventorySession(context.Background(), ports.InventorySetup{
		Table:          inventoryTable(ids...),
		IDColumn:       "Bale",
		QualityColumns: []string{"Mic", "Strength"},
		Lot:            "L1",
		StartNumber:    1,
	})
	if err != nil {
		t.Fatalf("CreateInventorySession() error = %v", err)
	}
	return session
}

func TestManualSessionScenarioAssignsConsecutiveNumbers(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	ctx := context.Background()

	session, first, err := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "L9", StartNumber: 5})
	if err != nil {
		t.Fatalf("CreateManualSession() error = %v", err)
	}
	if first.ID != "L9-5" || first.MillBaleNumber != 5 || first.Status != domain.BaleStatusPending {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if store.puts != 1 {
		t.Fatalf("expected session persisted on creation, got %d puts", store.puts)
	}

	x, err := uc.SelectBale(session, "X")
	if err != nil {
		t.Fatalf("SelectBale() error = %v", err)
	}
	res, err := uc.CompleteBale(ctx, session, x, 100, nil)
	if err != nil {
		t.Fatalf("CompleteBale(X) error = %v", err)
	}
	session = res.Session

	y, _ := uc.SelectBale(session, "Y")
	res, err = uc.CompleteBale(ctx, session, y, 150, nil)
	if err != nil {
		t.Fatalf("CompleteBale(Y) error = %v", err)
	}
	session = res.Session

	if len(session.Bales) != 2 {
		t.Fatalf("expected 2 bales, got %d", len(session.Bales))
	}
	if session.Bales[0].ID != "X" || session.Bales[0].MillBaleNumber != 5 {
		t.Fatalf("unexpected first record: %+v", session.Bales[0])
	}
	if session.Bales[1].ID != "Y" || session.Bales[1].MillBaleNumber != 6 {
		t.Fatalf("unexpected second record: %+v", session.Bales[1])
	}
	if session.Config.CurrentMillBale != 7 {
		t.Fatalf("expected current mill bale 7, got %d", session.Config.CurrentMillBale)
	}
	if res.Next == nil || res.Next.ID != "L9-7" || res.Next.MillBaleNumber != 7 {
		t.Fatalf("expected auto-advanced candidate L9-7, got %+v", res.Next)
	}
	for _, b := range session.Bales {
		if !b.IsCompleted() || b.MillLot != "L9" {
			t.Fatalf("expected completed bale in lot L9, got %+v", b)
		}
	}
}

func TestManualCompletionsNumberSequentiallyAndGrowByOne(t *testing.T) {
	for _, tc := range []struct{ start, n int }{{1, 1}, {3, 10}, {250, 4}} {
		store := newStoreFake()
		uc := newWorkflowForTests(store, WorkflowOptions{})
		ctx := context.Background()

		session, _, err := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "LOT", StartNumber: tc.start})
		if err != nil {
			t.Fatalf("CreateManualSession() error = %v", err)
		}
		for i := 0; i < tc.n; i++ {
			before := len(session.Bales)
			res, err := uc.CompleteBale(ctx, session, uc.ResumeSequential(session), float64(100+i), nil)
			if err != nil {
				t.Fatalf("CompleteBale() #%d error = %v", i, err)
			}
			session = res.Session
			if len(session.Bales) != before+1 {
				t.Fatalf("expected manual collection to grow by 1, got %d -> %d", before, len(session.Bales))
			}
		}
		for i, b := range session.Bales {
			if b.MillBaleNumber != tc.start+i {
				t.Fatalf("start=%d: bale %d got number %d", tc.start, i, b.MillBaleNumber)
			}
		}
		if session.Config.CurrentMillBale != tc.start+tc.n {
			t.Fatalf("start=%d n=%d: expected counter %d, got %d", tc.start, tc.n, tc.start+tc.n, session.Config.CurrentMillBale)
		}
	}
}

func TestResumeSessionRebuildsManualCandidateIdempotently(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	ctx := context.Background()

	session, _, _ := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "L2", StartNumber: 10})
	for i := 0; i < 3; i++ {
		res, err := uc.CompleteBale(ctx, session, uc.ResumeSequential(session), 90, nil)
		if err != nil {
			t.Fatalf("CompleteBale() error = %v", err)
		}
		session = res.Session
	}

	resumed, candidate, err := uc.ResumeSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("ResumeSession() error = %v", err)
	}
	if candidate == nil || candidate.MillBaleNumber != 13 || candidate.ID != "L2-13" {
		t.Fatalf("expected candidate L2-13, got %+v", candidate)
	}
	a := uc.ResumeSequential(resumed)
	b := uc.ResumeSequential(resumed)
	if a.ID != b.ID || a.MillBaleNumber != b.MillBaleNumber || a.MillBaleNumber != 13 {
		t.Fatalf("ResumeSequential not idempotent: %+v vs %+v", a, b)
	}
	if len(resumed.Bales) != 3 {
		t.Fatalf("pending candidate must not be persisted, got %d bales", len(resumed.Bales))
	}
}

func TestResumeSessionInventoryHasNoCandidate(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	session := newInventorySession(t, uc, "A1")

	_, candidate, err := uc.ResumeSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ResumeSession() error = %v", err)
	}
	if candidate != nil {
		t.Fatalf("expected no auto-selection for inventory sessions, got %+v", candidate)
	}
}

func TestResumeSessionMissingReportsLookupStep(t *testing.T) {
	uc := newWorkflowForTests(newStoreFake(), WorkflowOptions{})
	_, _, err := uc.ResumeSession(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if step, _ := domain.StepOf(err); step != domain.StepLookup {
		t.Fatalf("expected lookup step, got %q", step)
	}
}

func TestRecordWeightRejectsUnparseableText(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	session, bale, _ := uc.CreateManualSession(context.Background(), ports.ManualSetup{Lot: "L1"})

	for _, text := range []string{"abc", "", "   ", "NaN", "Inf"} {
		_, err := uc.RecordWeight(bale, text)
		if !domain.IsKind(err, domain.ErrInvalidWeight) {
			t.Fatalf("RecordWeight(%q) expected ErrInvalidWeight, got %v", text, err)
		}
		if step, _ := domain.StepOf(err); step != domain.StepWeightEntry {
			t.Fatalf("RecordWeight(%q) expected weight_entry step, got %q", text, step)
		}
		if !domain.Retryable(err) {
			t.Fatalf("invalid weight must be retryable")
		}
	}
	if bale.Status != domain.BaleStatusPending || bale.Weight != nil {
		t.Fatalf("bale must stay pending, got %+v", bale)
	}
	if store.puts != 1 || len(session.Bales) != 0 {
		t.Fatalf("weight entry must not persist anything, puts=%d", store.puts)
	}
}

func TestRecordWeightParsesNumbers(t *testing.T) {
	uc := newWorkflowForTests(newStoreFake(), WorkflowOptions{})
	weight, err := uc.RecordWeight(domain.Bale{ID: "X"}, " 227.5 ")
	if err != nil {
		t.Fatalf("RecordWeight() error = %v", err)
	}
	if weight != 227.5 {
		t.Fatalf("expected 227.5, got %v", weight)
	}
}

func TestCreateSessionsValidateSetup(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	ctx := context.Background()

	if _, _, err := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "  "}); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty lot, got %v", err)
	}
	if _, _, err := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "L", StartNumber: -3}); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative start, got %v", err)
	}

	cases := []ports.InventorySetup{
		{Table: inventoryTable("A"), Lot: "L1"},
		{Table: inventoryTable("A"), IDColumn: "Bale"},
		{Table: inventoryTable("A"), IDColumn: "Missing", Lot: "L1"},
		{Table: domain.Table{}, IDColumn: "Bale", Lot: "L1"},
		{Table: inventoryTable("A"), IDColumn: "Bale", Lot: "L1", QualityColumns: []string{"Mic", "Strength", "Bale"}},
	}
	for i, setup := range cases {
		_, err := uc.CreateInventorySession(ctx, setup)
		if !domain.IsKind(err, domain.ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
		if step, _ := domain.StepOf(err); step != domain.StepSetup {
			t.Fatalf("case %d: expected setup step, got %q", i, step)
		}
	}
	if store.puts != 0 {
		t.Fatalf("rejected setups must not persist, got %d puts", store.puts)
	}
}

func TestCreateInventorySessionMapsRows(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	session := newInventorySession(t, uc, "A1", " A2 ", "A1")

	if session.Mode != domain.SessionModeInventory || len(session.Bales) != 3 {
		t.Fatalf("unexpected session: mode=%s bales=%d", session.Mode, len(session.Bales))
	}
	if !strings.HasPrefix(session.Name, "Lot L1 (") {
		t.Fatalf("unexpected session name %q", session.Name)
	}
	b := session.Bales[1]
	if b.ID != "A2" || b.OriginalID != "A2" {
		t.Fatalf("expected trimmed id A2, got %+v", b)
	}
	if b.Weight != nil || b.Status != domain.BaleStatusPending || b.MillLot != "" || b.MillBaleNumber != 0 {
		t.Fatalf("imported bale must be a pending placeholder, got %+v", b)
	}
	if b.MappedValues["Mic"] != "4.1" || b.MappedValues["Strength"] != "29" {
		t.Fatalf("unexpected mapped values %+v", b.MappedValues)
	}
	mapping := session.Config.ColumnMapping
	if mapping == nil || mapping.IDColumn != "Bale" || mapping.Value1 != "Mic" || mapping.Value2Name != "Strength" {
		t.Fatalf("unexpected column mapping %+v", mapping)
	}
	if _, ok := store.sessions[session.ID]; !ok {
		t.Fatalf("expected inventory session persisted")
	}
}

func TestInventoryCompletionReplacesInPlace(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	ctx := context.Background()
	session := newInventorySession(t, uc, "A1", "A2", "A3")

	bale, err := uc.SelectBale(session, "A2")
	if err != nil {
		t.Fatalf("SelectBale() error = %v", err)
	}
	res, err := uc.CompleteBale(ctx, session, bale, 221.4, nil)
	if err != nil {
		t.Fatalf("CompleteBale() error = %v", err)
	}

	if len(res.Session.Bales) != 3 {
		t.Fatalf("inventory completion must not change length, got %d", len(res.Session.Bales))
	}
	got := res.Session.Bales[1]
	if got.ID != "A2" || !got.IsCompleted() || got.MillLot != "L1" || got.MillBaleNumber != 1 || *got.Weight != 221.4 {
		t.Fatalf("unexpected completed record: %+v", got)
	}
	if got.MappedValues["Mic"] != "4.1" {
		t.Fatalf("mapped values must survive completion, got %+v", got.MappedValues)
	}
	if res.Next != nil {
		t.Fatalf("inventory completion must not auto-select, got %+v", res.Next)
	}
	if res.Session.Config.CurrentMillBale != 2 {
		t.Fatalf("expected counter 2, got %d", res.Session.Config.CurrentMillBale)
	}
	if session.Bales[1].Status != domain.BaleStatusPending || session.Config.CurrentMillBale != 1 {
		t.Fatalf("previous snapshot must not be mutated")
	}
	stored := store.sessions[session.ID]
	if stored.Bales[1].Status != domain.BaleStatusCompleted || stored.Config.CurrentMillBale != 2 {
		t.Fatalf("expected persisted snapshot to include completion and counter")
	}
}

func TestInventoryRecompletionRejectedByDefault(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	ctx := context.Background()
	session := newInventorySession(t, uc, "Z")

	bale, _ := uc.SelectBale(session, "Z")
	res, err := uc.CompleteBale(ctx, session, bale, 200, nil)
	if err != nil {
		t.Fatalf("first CompleteBale() error = %v", err)
	}
	session = res.Session
	putsBefore := store.puts

	again, _ := uc.SelectBale(session, "Z")
	_, err = uc.CompleteBale(ctx, session, again, 210, nil)
	if !domain.IsKind(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if step, _ := domain.StepOf(err); step != domain.StepCompletion {
		t.Fatalf("expected completion step, got %q", step)
	}
	if store.puts != putsBefore || store.sessions[session.ID].Config.CurrentMillBale != 2 {
		t.Fatalf("rejected recompletion must not persist or advance the counter")
	}
}

func TestInventoryRecompletionOverwritePolicy(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{RecompletePolicy: RecompleteOverwrite})
	ctx := context.Background()
	session := newInventorySession(t, uc, "Z")

	for _, w := range []float64{200, 210} {
		bale, _ := uc.SelectBale(session, "Z")
		res, err := uc.CompleteBale(ctx, session, bale, w, nil)
		if err != nil {
			t.Fatalf("CompleteBale(%v) error = %v", w, err)
		}
		session = res.Session
	}
	if len(session.Bales) != 1 {
		t.Fatalf("overwrite must not grow the collection, got %d", len(session.Bales))
	}
	if *session.Bales[0].Weight != 210 || session.Bales[0].MillBaleNumber != 2 {
		t.Fatalf("expected overwritten record with fresh number, got %+v", session.Bales[0])
	}
	if session.Config.CurrentMillBale != 3 {
		t.Fatalf("numbers are never reused, expected counter 3, got %d", session.Config.CurrentMillBale)
	}
}

func TestRecompletionDropsPreviousAssessment(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{RecompletePolicy: RecompleteOverwrite})
	ctx := context.Background()
	session := newInventorySession(t, uc, "Z")

	old := "old assessment"
	bale, _ := uc.SelectBale(session, "Z")
	res, err := uc.CompleteBale(ctx, session, bale, 200, &old)
	if err != nil {
		t.Fatalf("first CompleteBale() error = %v", err)
	}
	if res.Completed.QualityAssessment == nil || *res.Completed.QualityAssessment != old {
		t.Fatalf("expected assessment on first completion, got %+v", res.Completed)
	}

	bale, _ = uc.SelectBale(res.Session, "Z")
	res, err = uc.CompleteBale(ctx, res.Session, bale, 210, nil)
	if err != nil {
		t.Fatalf("second CompleteBale() error = %v", err)
	}
	if res.Completed.QualityAssessment != nil || res.Session.Bales[0].QualityAssessment != nil {
		t.Fatalf("expected assessment cleared on recompletion, got %+v", res.Session.Bales[0])
	}
}

func TestManualDuplicateDoesNotInheritAssessment(t *testing.T) {
	uc := newWorkflowForTests(newStoreFake(), WorkflowOptions{})
	ctx := context.Background()
	session, _, _ := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "L"})

	text := "premium"
	bale, _ := uc.SelectBale(session, "DUP")
	res, err := uc.CompleteBale(ctx, session, bale, 100, &text)
	if err != nil {
		t.Fatalf("first CompleteBale() error = %v", err)
	}
	// Completing the stored record again, as a client re-selecting it would.
	res, err = uc.CompleteBale(ctx, res.Session, res.Session.Bales[0], 105, nil)
	if err != nil {
		t.Fatalf("second CompleteBale() error = %v", err)
	}
	if len(res.Session.Bales) != 2 || res.Session.Bales[1].QualityAssessment != nil {
		t.Fatalf("expected appended bale without assessment, got %+v", res.Session.Bales)
	}
	if res.Session.Bales[0].QualityAssessment == nil {
		t.Fatalf("first record must keep its assessment")
	}
}

func TestInventoryCompletionPrefersPendingDuplicate(t *testing.T) {
	uc := newWorkflowForTests(newStoreFake(), WorkflowOptions{})
	ctx := context.Background()
	session := newInventorySession(t, uc, "A1", "A2", "A1")

	for i := 0; i < 2; i++ {
		bale, _ := uc.SelectBale(session, "A1")
		res, err := uc.CompleteBale(ctx, session, bale, 100, nil)
		if err != nil {
			t.Fatalf("CompleteBale() #%d error = %v", i, err)
		}
		session = res.Session
	}
	if session.Bales[0].Status != domain.BaleStatusCompleted || session.Bales[2].Status != domain.BaleStatusCompleted {
		t.Fatalf("expected both A1 rows completed, got %+v", session.Bales)
	}
	if session.Bales[1].Status != domain.BaleStatusPending {
		t.Fatalf("A2 must stay pending")
	}
}

func TestInventoryCompletionUnknownIDIsNotFound(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	session := newInventorySession(t, uc, "A1")

	_, err := uc.CompleteBale(context.Background(), session, domain.Bale{ID: "GHOST"}, 50, nil)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if step, _ := domain.StepOf(err); step != domain.StepCompletion {
		t.Fatalf("expected completion step, got %q", step)
	}
	if domain.Retryable(err) {
		t.Fatalf("consistency violation must not be reported as retryable")
	}
	if store.puts != 1 {
		t.Fatalf("failed completion must not persist")
	}
}

func TestCompletionStorageFailureLeavesStateUntouched(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	ctx := context.Background()
	session, candidate, _ := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "L3", StartNumber: 4})

	store.putErr = errStoreDown
	_, err := uc.CompleteBale(ctx, session, candidate, 180, nil)
	if !errors.Is(err, errStoreDown) || !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if step, _ := domain.StepOf(err); step != domain.StepPersistence {
		t.Fatalf("expected persistence step, got %q", step)
	}
	if session.Config.CurrentMillBale != 4 || len(session.Bales) != 0 {
		t.Fatalf("in-memory session must stay at last known-good value, got %+v", session.Config)
	}
	if store.sessions[session.ID].Config.CurrentMillBale != 4 {
		t.Fatalf("stored counter must not advance")
	}

	store.putErr = nil
	res, err := uc.CompleteBale(ctx, session, candidate, 180, nil)
	if err != nil {
		t.Fatalf("retry CompleteBale() error = %v", err)
	}
	if res.Completed.MillBaleNumber != 4 {
		t.Fatalf("retry must reuse the uncommitted number 4, got %d", res.Completed.MillBaleNumber)
	}
}

func TestManualDuplicatePolicy(t *testing.T) {
	ctx := context.Background()

	allow := newWorkflowForTests(newStoreFake(), WorkflowOptions{})
	session, _, _ := allow.CreateManualSession(ctx, ports.ManualSetup{Lot: "L"})
	for i := 0; i < 2; i++ {
		bale, _ := allow.SelectBale(session, "DUP")
		res, err := allow.CompleteBale(ctx, session, bale, 100, nil)
		if err != nil {
			t.Fatalf("allow policy CompleteBale() error = %v", err)
		}
		session = res.Session
	}
	if len(session.Bales) != 2 || DuplicateCount(session.Bales) != 1 {
		t.Fatalf("expected two coexisting records and one duplicate, got %d / %d", len(session.Bales), DuplicateCount(session.Bales))
	}

	reject := newWorkflowForTests(newStoreFake(), WorkflowOptions{ManualDuplicates: DuplicatesReject})
	session, _, _ = reject.CreateManualSession(ctx, ports.ManualSetup{Lot: "L"})
	bale, _ := reject.SelectBale(session, "DUP")
	res, err := reject.CompleteBale(ctx, session, bale, 100, nil)
	if err != nil {
		t.Fatalf("reject policy first CompleteBale() error = %v", err)
	}
	_, err = reject.CompleteBale(ctx, res.Session, bale, 100, nil)
	if !domain.IsKind(err, domain.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestSelectBaleManualSynthesizesPendingBale(t *testing.T) {
	uc := newWorkflowForTests(newStoreFake(), WorkflowOptions{})
	session, _, _ := uc.CreateManualSession(context.Background(), ports.ManualSetup{Lot: "L5", StartNumber: 8})

	typed, err := uc.SelectBale(session, " T-100 ")
	if err != nil {
		t.Fatalf("SelectBale() error = %v", err)
	}
	if typed.ID != "T-100" || typed.MillLot != "L5" || typed.MillBaleNumber != 8 || typed.Status != domain.BaleStatusPending {
		t.Fatalf("unexpected typed bale: %+v", typed)
	}

	blank, _ := uc.SelectBale(session, "")
	if !strings.HasPrefix(blank.ID, "MANUAL-") {
		t.Fatalf("expected MANUAL- fallback id, got %q", blank.ID)
	}
}

func TestSelectBaleInventoryUnknownID(t *testing.T) {
	uc := newWorkflowForTests(newStoreFake(), WorkflowOptions{})
	session := newInventorySession(t, uc, "A1")

	_, err := uc.SelectBale(session, "nope")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if step, _ := domain.StepOf(err); step != domain.StepLookup {
		t.Fatalf("expected lookup step, got %q", step)
	}
}

func TestSearchIsInventoryOnly(t *testing.T) {
	store := newStoreFake()
	matcher := &matcherFake{}
	uc := NewWorkflowUseCase(store, matcher, nil, nil, WorkflowOptions{Now: fixedClock(), NewID: sequentialIDs()})
	ctx := context.Background()

	manual, _, _ := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "L"})
	if got := uc.Search(manual, "L-1"); got != nil {
		t.Fatalf("manual search must return nil, got %+v", got)
	}

	inventory := newInventorySession(t, uc, "A1", "A2")
	if got := uc.Search(inventory, "  "); got != nil {
		t.Fatalf("empty query must return nil, got %+v", got)
	}
	got := uc.Search(inventory, "A2")
	if len(got) != 1 || got[0].ID != "A2" {
		t.Fatalf("unexpected search result %+v", got)
	}
	if len(matcher.queries) != 1 {
		t.Fatalf("expected matcher consulted once, got %d", len(matcher.queries))
	}
}

func TestScanUsesExactLookupFirst(t *testing.T) {
	uc := newWorkflowForTests(newStoreFake(), WorkflowOptions{})
	ctx := context.Background()

	inventory := newInventorySession(t, uc, "A1", "A2")
	hit, err := uc.Scan(inventory, "A2\n")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !hit.Found || hit.Bale.ID != "A2" || hit.Bale.MappedValues["Mic"] != "4.1" {
		t.Fatalf("expected exact hit on A2, got %+v", hit)
	}

	miss, err := uc.Scan(inventory, "A9")
	if err != nil {
		t.Fatalf("Scan() miss error = %v", err)
	}
	if miss.Found || miss.Created {
		t.Fatalf("inventory miss must be reported as not found, got %+v", miss)
	}

	manual, _, _ := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "M", StartNumber: 3})
	created, err := uc.Scan(manual, "QR-77")
	if err != nil {
		t.Fatalf("Scan() manual error = %v", err)
	}
	if !created.Created || created.Bale.ID != "QR-77" || created.Bale.MillBaleNumber != 3 {
		t.Fatalf("manual scan must start a new pending bale, got %+v", created)
	}

	if _, err := uc.Scan(manual, "  "); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty scan, got %v", err)
	}
}

func TestScanFailedMapsDecoderReason(t *testing.T) {
	metrics := &metricsFake{}
	uc := newWorkflowForTests(newStoreFake(), WorkflowOptions{Metrics: metrics})

	err := uc.ScanFailed(domain.DecoderDeviceBusy)
	if !domain.IsKind(err, domain.ErrDecoder) {
		t.Fatalf("expected ErrDecoder, got %v", err)
	}
	var decErr *domain.DecoderError
	if !errors.As(err, &decErr) || decErr.Reason != domain.DecoderDeviceBusy {
		t.Fatalf("expected device-busy decoder error, got %v", err)
	}
	if metrics.failures[domain.StepLookup] != 1 {
		t.Fatalf("expected lookup failure observed, got %+v", metrics.failures)
	}
}

func TestUpdateNumberingLockedAfterCompletion(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	ctx := context.Background()
	session := newInventorySession(t, uc, "A1", "A2")

	updated, err := uc.UpdateNumbering(ctx, session, "L7", 40)
	if err != nil {
		t.Fatalf("UpdateNumbering() before completion error = %v", err)
	}
	if updated.Config.StartMillLot != "L7" || updated.Config.CurrentMillBale != 40 {
		t.Fatalf("unexpected config %+v", updated.Config)
	}

	bale, _ := uc.SelectBale(updated, "A1")
	res, err := uc.CompleteBale(ctx, updated, bale, 99, nil)
	if err != nil {
		t.Fatalf("CompleteBale() error = %v", err)
	}
	if res.Completed.MillBaleNumber != 40 || res.Completed.MillLot != "L7" {
		t.Fatalf("unexpected identity %+v", res.Completed)
	}

	_, err = uc.UpdateNumbering(ctx, res.Session, "L8", 1)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation once a bale is completed, got %v", err)
	}
}

func TestAssessQualityFeedsCompletion(t *testing.T) {
	store := newStoreFake()
	assessor := &assessorFake{text: "Strong fibre. Good spinning. No discount."}
	uc := NewWorkflowUseCase(store, &matcherFake{}, assessor, nil, WorkflowOptions{Now: fixedClock(), NewID: sequentialIDs()})
	ctx := context.Background()
	session := newInventorySession(t, uc, "A1")

	bale, _ := uc.SelectBale(session, "A1")
	text, err := uc.AssessQuality(ctx, session, bale)
	if err != nil {
		t.Fatalf("AssessQuality() error = %v", err)
	}
	if assessor.input.Field1 != "4.0" || assessor.input.Field2 != "29" || assessor.input.Field1Name != "Mic" {
		t.Fatalf("unexpected assessment input %+v", assessor.input)
	}
	if store.sessions[session.ID].Bales[0].QualityAssessment != nil {
		t.Fatalf("assessment must not be stored before completion")
	}

	res, err := uc.CompleteBale(ctx, session, bale, 215, &text)
	if err != nil {
		t.Fatalf("CompleteBale() error = %v", err)
	}
	if res.Completed.QualityAssessment == nil || *res.Completed.QualityAssessment != text {
		t.Fatalf("expected assessment stored verbatim, got %+v", res.Completed.QualityAssessment)
	}
}

func TestAssessQualityManualUsesPlaceholders(t *testing.T) {
	assessor := &assessorFake{text: "ok"}
	uc := NewWorkflowUseCase(newStoreFake(), &matcherFake{}, assessor, nil, WorkflowOptions{Now: fixedClock(), NewID: sequentialIDs()})
	session, bale, _ := uc.CreateManualSession(context.Background(), ports.ManualSetup{Lot: "L"})

	if _, err := uc.AssessQuality(context.Background(), session, bale); err != nil {
		t.Fatalf("AssessQuality() error = %v", err)
	}
	if assessor.input.Field1 != "N/A" || assessor.input.Field2 != "N/A" {
		t.Fatalf("expected N/A placeholders, got %+v", assessor.input)
	}
}

func TestAssessQualityWithoutCollaborator(t *testing.T) {
	uc := newWorkflowForTests(newStoreFake(), WorkflowOptions{})
	session, bale, _ := uc.CreateManualSession(context.Background(), ports.ManualSetup{Lot: "L"})

	_, err := uc.AssessQuality(context.Background(), session, bale)
	if step, _ := domain.StepOf(err); step != domain.StepAssessment {
		t.Fatalf("expected assessment step error, got %v", err)
	}
}

func TestCompletionPublishesEventAfterPersist(t *testing.T) {
	store := newStoreFake()
	events := &publisherFake{}
	metrics := &metricsFake{}
	uc := NewWorkflowUseCase(store, &matcherFake{}, nil, events, WorkflowOptions{Now: fixedClock(), NewID: sequentialIDs(), Metrics: metrics})
	ctx := context.Background()
	session, candidate, _ := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "E", StartNumber: 2})

	if _, err := uc.CompleteBale(ctx, session, candidate, 205.5, nil); err != nil {
		t.Fatalf("CompleteBale() error = %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.events))
	}
	ev := events.events[0]
	if ev.SessionID != session.ID || ev.BaleID != "E-2" || ev.MillBaleNumber != 2 || ev.Weight != 205.5 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if metrics.completions != 1 || metrics.persists != 2 {
		t.Fatalf("unexpected metrics: completions=%d persists=%d", metrics.completions, metrics.persists)
	}

	events.err = errors.New("nats down")
	res, err := uc.CompleteBale(ctx, session, candidate, 205.5, nil)
	if err != nil {
		t.Fatalf("publish failures must not fail a durable completion, got %v", err)
	}
	if res.Completed.Status != domain.BaleStatusCompleted {
		t.Fatalf("expected completed bale")
	}
}

func TestListAndDeleteSessions(t *testing.T) {
	store := newStoreFake()
	uc := newWorkflowForTests(store, WorkflowOptions{})
	ctx := context.Background()

	first, _, _ := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "A"})
	second, _, _ := uc.CreateManualSession(ctx, ports.ManualSetup{Lot: "B"})

	sessions, err := uc.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != second.ID {
		t.Fatalf("expected newest session first, got %+v", sessions)
	}

	if err := uc.DeleteSession(ctx, first.ID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if err := uc.DeleteSession(ctx, first.ID); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}
