package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

type storeFake struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	puts     int
	putErr   error
}

func newStoreFake() *storeFake {
	return &storeFake{sessions: make(map[string]*domain.Session)}
}

func (f *storeFake) Put(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.sessions[session.ID] = session.Clone()
	return nil
}

func (f *storeFake) Get(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", id))
	}
	return session.Clone(), nil
}

func (f *storeFake) GetAll(context.Context) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, *s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *storeFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "delete session", fmt.Errorf("id=%s", id))
	}
	delete(f.sessions, id)
	return nil
}

type matcherFake struct {
	queries []string
}

func (f *matcherFake) Search(query string, bales []domain.Bale) []domain.Bale {
	f.queries = append(f.queries, query)
	out := make([]domain.Bale, 0)
	for _, b := range bales {
		if b.ID == query {
			out = append(out, b)
		}
	}
	return out
}

type assessorFake struct {
	input domain.AssessmentInput
	text  string
	err   error
}

func (f *assessorFake) Assess(_ context.Context, input domain.AssessmentInput) (string, error) {
	f.input = input
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type publisherFake struct {
	events []domain.BaleCompletedEvent
	err    error
}

func (f *publisherFake) PublishBaleCompleted(_ context.Context, event domain.BaleCompletedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type metricsFake struct {
	completions int
	failures    map[domain.Step]int
	persists    int
}

func (f *metricsFake) ObserveCompletion(domain.SessionMode) { f.completions++ }
func (f *metricsFake) ObserveFailure(step domain.Step) {
	if f.failures == nil {
		f.failures = make(map[domain.Step]int)
	}
	f.failures[step]++
}
func (f *metricsFake) ObservePersist(time.Duration, error) { f.persists++ }

var errStoreDown = errors.New("store down")

func fixedClock() func() time.Time {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	return func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	}
}
