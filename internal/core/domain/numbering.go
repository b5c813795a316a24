package domain

import "fmt"

// PeekNext returns the identity the next completed bale would receive.
func PeekNext(cfg SessionConfig) (string, int) {
	return cfg.StartMillLot, cfg.CurrentMillBale
}

// CommitAdvance returns cfg with the counter moved past the number just assigned.
func CommitAdvance(cfg SessionConfig) SessionConfig {
	out := cfg
	if cfg.ColumnMapping != nil {
		mapping := *cfg.ColumnMapping
		out.ColumnMapping = &mapping
	}
	out.CurrentMillBale = cfg.CurrentMillBale + 1
	return out
}

// CandidateID is the identifier of a sequential manual bale.
func CandidateID(lot string, number int) string {
	return fmt.Sprintf("%s-%d", lot, number)
}

// NewPendingBale synthesizes a pending bale carrying the provisional lot and
// counter of cfg.
func NewPendingBale(id string, cfg SessionConfig) Bale {
	lot, number := PeekNext(cfg)
	return Bale{
		ID:             id,
		OriginalID:     id,
		MappedValues:   map[string]any{},
		MillLot:        lot,
		MillBaleNumber: number,
		Status:         BaleStatusPending,
	}
}

// Validate checks the numbering invariants of a config.
func (c SessionConfig) Validate() error {
	if c.StartMillLot == "" {
		return fmt.Errorf("start mill lot is required")
	}
	if c.StartMillBale < 1 {
		return fmt.Errorf("start mill bale must be >= 1, got %d", c.StartMillBale)
	}
	if c.CurrentMillBale < c.StartMillBale {
		return fmt.Errorf("current mill bale %d is below start %d", c.CurrentMillBale, c.StartMillBale)
	}
	return nil
}
