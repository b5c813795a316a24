package domain

// Row is one imported table row keyed by column name.
type Row map[string]any

// Table is the shape exchanged with the tabular import/export collaborator.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ScanResult is the outcome of an exact identifier lookup.
type ScanResult struct {
	Bale    Bale `json:"bale"`
	Found   bool `json:"found"`
	Created bool `json:"created"`
}

// BaleCompletedEvent is published after a completion has been persisted.
type BaleCompletedEvent struct {
	SessionID      string      `json:"session_id"`
	Mode           SessionMode `json:"mode"`
	BaleID         string      `json:"bale_id"`
	MillLot        string      `json:"mill_lot"`
	MillBaleNumber int         `json:"mill_bale_number"`
	Weight         float64     `json:"weight"`
	CompletedAt    string      `json:"completed_at"`
}

// FrequencyEntry is one row of a value-distribution table.
type FrequencyEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// SessionSummary holds totals derived from a session snapshot.
type SessionSummary struct {
	SessionID   string      `json:"session_id"`
	Mode        SessionMode `json:"mode"`
	Total       int         `json:"total"`
	Completed   int         `json:"completed"`
	Pending     int         `json:"pending"`
	Progress    int         `json:"progress"`
	TotalWeight float64     `json:"total_weight"`
	Duplicates  int         `json:"duplicates"`
	NextLot     string      `json:"next_lot"`
	NextNumber  int         `json:"next_number"`
	LastScanned *Bale       `json:"last_scanned,omitempty"`
}
