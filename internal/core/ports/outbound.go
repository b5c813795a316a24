package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

// SessionStore persists whole-session snapshots keyed by session id.
type SessionStore interface {
	Put(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	// GetAll returns sessions sorted by CreatedAt descending.
	GetAll(ctx context.Context) ([]domain.Session, error)
	Delete(ctx context.Context, id string) error
}

// MatchIndex ranks bales whose id approximately matches query, best first.
type MatchIndex interface {
	Search(query string, bales []domain.Bale) []domain.Bale
}

// QualityAssessor produces advisory quality text for a bale.
type QualityAssessor interface {
	Assess(ctx context.Context, input domain.AssessmentInput) (string, error)
}

// EventPublisher announces durable completions.
type EventPublisher interface {
	PublishBaleCompleted(ctx context.Context, event domain.BaleCompletedEvent) error
}

// EventSubscriber consumes completion events.
type EventSubscriber interface {
	SubscribeBaleCompleted(ctx context.Context, handler func(context.Context, domain.BaleCompletedEvent) error) error
}

// TableImporter converts an external table into rows of column->value.
type TableImporter interface {
	Import(ctx context.Context, r io.Reader) (domain.Table, error)
}

// TableExporter writes a session's bales back into the same row shape.
type TableExporter interface {
	Export(ctx context.Context, w io.Writer, session *domain.Session) error
}

// WorkflowMetrics observes workflow transitions.
type WorkflowMetrics interface {
	ObserveCompletion(mode domain.SessionMode)
	ObserveFailure(step domain.Step)
	ObservePersist(duration time.Duration, err error)
}

// CompletionLedger keeps one row per committed lot/number. Record reports
// false when the completion was already known.
type CompletionLedger interface {
	Record(ctx context.Context, event domain.BaleCompletedEvent) (bool, error)
}

// ObjectStorage stores opaque artifacts such as regenerated exports.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
}

// ProjectionMetrics observes the completion projection worker.
type ProjectionMetrics interface {
	ObserveEventLag(lag time.Duration)
	ObserveLedger(result string)
	StartExport()
	FinishExport(duration time.Duration, err error)
}
