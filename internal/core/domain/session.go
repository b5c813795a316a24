package domain

import "time"

type SessionMode string

const (
	SessionModeManual    SessionMode = "manual"
	SessionModeInventory SessionMode = "inventory"
)

type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusArchived SessionStatus = "archived"
)

// ColumnMapping names the identifier column and up to two quality columns of
// an imported table. The display names label reports.
type ColumnMapping struct {
	IDColumn   string `json:"id_column" yaml:"id_column"`
	Value1     string `json:"value1,omitempty" yaml:"value1"`
	Value2     string `json:"value2,omitempty" yaml:"value2"`
	Value1Name string `json:"value1_name,omitempty" yaml:"value1_name"`
	Value2Name string `json:"value2_name,omitempty" yaml:"value2_name"`
}

// QualityColumns lists the configured quality columns in order, skipping blanks.
func (m ColumnMapping) QualityColumns() []string {
	out := make([]string, 0, 2)
	if m.Value1 != "" {
		out = append(out, m.Value1)
	}
	if m.Value2 != "" {
		out = append(out, m.Value2)
	}
	return out
}

type SessionConfig struct {
	StartMillLot    string         `json:"start_mill_lot"`
	StartMillBale   int            `json:"start_mill_bale"`
	CurrentMillBale int            `json:"current_mill_bale"`
	ColumnMapping   *ColumnMapping `json:"column_mapping,omitempty"`
}

type Session struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	Mode      SessionMode   `json:"mode"`
	Config    SessionConfig `json:"config"`
	Bales     []Bale        `json:"bales"`
	Status    SessionStatus `json:"status"`
}

// Clone deep-copies the session; workflow transitions always operate on a clone
// so the previous snapshot stays valid until the new one is persisted.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Config.ColumnMapping != nil {
		mapping := *s.Config.ColumnMapping
		out.Config.ColumnMapping = &mapping
	}
	out.Bales = make([]Bale, len(s.Bales))
	for i, b := range s.Bales {
		out.Bales[i] = b.Clone()
	}
	return &out
}

// IndexOf returns the position of the first bale with the given id, or -1.
func (s *Session) IndexOf(id string) int {
	for i := range s.Bales {
		if s.Bales[i].ID == id {
			return i
		}
	}
	return -1
}

// HasCompleted is true once any bale in the session has been completed.
func (s *Session) HasCompleted() bool {
	for i := range s.Bales {
		if s.Bales[i].Status == BaleStatusCompleted {
			return true
		}
	}
	return false
}

// QualityColumns returns the mapped quality columns, empty for manual sessions.
func (s *Session) QualityColumns() []string {
	if s.Config.ColumnMapping == nil {
		return nil
	}
	return s.Config.ColumnMapping.QualityColumns()
}
