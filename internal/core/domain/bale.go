package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type BaleStatus string

const (
	BaleStatusPending   BaleStatus = "pending"
	BaleStatusCompleted BaleStatus = "completed"
)

// Bale is a single physical inventory unit. MillLot and MillBaleNumber are
// authoritative only once the bale is completed.
type Bale struct {
	ID                string         `json:"id"`
	OriginalID        string         `json:"original_id"`
	MappedValues      map[string]any `json:"mapped_values"`
	MillLot           string         `json:"mill_lot"`
	MillBaleNumber    int            `json:"mill_bale_number"`
	Weight            *float64       `json:"weight"`
	Status            BaleStatus     `json:"status"`
	ScannedAt         *time.Time     `json:"scanned_at,omitempty"`
	QualityAssessment *string        `json:"quality_assessment,omitempty"`
}

// IsCompleted reports whether the bale satisfies the completion invariant.
func (b Bale) IsCompleted() bool {
	return b.Status == BaleStatusCompleted && b.Weight != nil && b.ScannedAt != nil
}

// HasWeight is true once a measurement has been recorded.
func (b Bale) HasWeight() bool {
	return b.Weight != nil
}

// Value returns a mapped value by its source column name.
func (b Bale) Value(column string) (any, bool) {
	if b.MappedValues == nil || column == "" {
		return nil, false
	}
	v, ok := b.MappedValues[column]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Clone returns a deep copy so callers can derive a new snapshot without
// aliasing the previous one.
func (b Bale) Clone() Bale {
	out := b
	if b.MappedValues != nil {
		out.MappedValues = make(map[string]any, len(b.MappedValues))
		for k, v := range b.MappedValues {
			out.MappedValues[k] = v
		}
	}
	if b.Weight != nil {
		w := *b.Weight
		out.Weight = &w
	}
	if b.ScannedAt != nil {
		ts := *b.ScannedAt
		out.ScannedAt = &ts
	}
	if b.QualityAssessment != nil {
		qa := *b.QualityAssessment
		out.QualityAssessment = &qa
	}
	return out
}

// ScalarString renders a mapped scalar the way reports and exports show it.
func ScalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
