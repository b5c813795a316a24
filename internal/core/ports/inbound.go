package ports

import (
	"context"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

// ManualSetup starts a purely sequential session.
type ManualSetup struct {
	Lot         string `json:"lot"`
	StartNumber int    `json:"start_bale"`
}

// InventorySetup starts a session backed by imported rows.
type InventorySetup struct {
	Table          domain.Table `json:"table"`
	IDColumn       string       `json:"id_column"`
	QualityColumns []string     `json:"quality_columns"`
	Lot            string       `json:"lot"`
	StartNumber    int          `json:"start_bale"`
}

// Completion is the outcome of a committed bale.
type Completion struct {
	Session   *domain.Session `json:"session"`
	Completed domain.Bale     `json:"completed"`
	Next      *domain.Bale    `json:"next,omitempty"`
}

// SessionWorkflow is the inbound contract of the bale workflow engine. Callers
// serialize mutations per session.
type SessionWorkflow interface {
	CreateManualSession(ctx context.Context, setup ManualSetup) (*domain.Session, domain.Bale, error)
	CreateInventorySession(ctx context.Context, setup InventorySetup) (*domain.Session, error)
	UpdateNumbering(ctx context.Context, session *domain.Session, lot string, start int) (*domain.Session, error)

	SelectBale(session *domain.Session, baleID string) (domain.Bale, error)
	ResumeSequential(session *domain.Session) domain.Bale
	Search(session *domain.Session, query string) []domain.Bale
	Scan(session *domain.Session, decoded string) (domain.ScanResult, error)
	ScanFailed(reason domain.DecoderReason) error

	RecordWeight(bale domain.Bale, weightText string) (float64, error)
	AssessQuality(ctx context.Context, session *domain.Session, bale domain.Bale) (string, error)
	CompleteBale(ctx context.Context, session *domain.Session, bale domain.Bale, weight float64, assessment *string) (*Completion, error)

	ListSessions(ctx context.Context) ([]domain.Session, error)
	ResumeSession(ctx context.Context, id string) (*domain.Session, *domain.Bale, error)
	DeleteSession(ctx context.Context, id string) error
}

// SessionReporter is the read model over persisted sessions.
type SessionReporter interface {
	Frequencies(ctx context.Context, sessionID, field string) ([]domain.FrequencyEntry, error)
	Summary(ctx context.Context, sessionID string) (domain.SessionSummary, error)
	CompletedBales(ctx context.Context, sessionID string) ([]domain.Bale, error)
}
