package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

// EmptyValueLabel reports bales with a missing value.
const EmptyValueLabel = "(Empty)"

// Field names accepted by ResolveField besides raw mapped column names.
// quality1 and quality2 are aliases of value1 and value2.
const (
	FieldID       = "id"
	FieldQuality1 = "value1"
	FieldQuality2 = "value2"

	fieldQuality1Alias = "quality1"
	fieldQuality2Alias = "quality2"
)

// FieldSelector extracts the analysed value of a bale; ok=false means missing.
type FieldSelector func(b domain.Bale) (any, bool)

func SelectID(b domain.Bale) (any, bool) {
	return b.ID, true
}

func SelectColumn(column string) FieldSelector {
	return func(b domain.Bale) (any, bool) {
		return b.Value(column)
	}
}

// ResolveField maps a field name onto a selector for session.
func ResolveField(session *domain.Session, field string) (FieldSelector, error) {
	field = strings.TrimSpace(field)
	mapping := session.Config.ColumnMapping

	switch field {
	case "", FieldID:
		return SelectID, nil
	case FieldQuality1, fieldQuality1Alias:
		if mapping == nil || mapping.Value1 == "" {
			return nil, domain.NewStepError(domain.StepLookup, domain.ErrValidation, fmt.Errorf("session %s has no first quality column", session.ID))
		}
		return SelectColumn(mapping.Value1), nil
	case FieldQuality2, fieldQuality2Alias:
		if mapping == nil || mapping.Value2 == "" {
			return nil, domain.NewStepError(domain.StepLookup, domain.ErrValidation, fmt.Errorf("session %s has no second quality column", session.ID))
		}
		return SelectColumn(mapping.Value2), nil
	}

	if mapping != nil {
		for _, column := range append([]string{mapping.IDColumn}, mapping.QualityColumns()...) {
			if column == field {
				return SelectColumn(column), nil
			}
		}
	}
	return nil, domain.NewStepError(domain.StepLookup, domain.ErrValidation, fmt.Errorf("unknown field %q", field))
}

// Frequencies counts bales per distinct value, ascending by count. Equal
// counts keep first-seen order. bales is only read.
func Frequencies(bales []domain.Bale, selector FieldSelector) []domain.FrequencyEntry {
	if selector == nil {
		selector = SelectID
	}

	index := make(map[string]int, len(bales))
	out := make([]domain.FrequencyEntry, 0)
	for _, b := range bales {
		label := EmptyValueLabel
		if v, ok := selector(b); ok && v != nil {
			label = strings.TrimSpace(domain.ScalarString(v))
		}
		if i, seen := index[label]; seen {
			out[i].Count++
			continue
		}
		index[label] = len(out)
		out = append(out, domain.FrequencyEntry{Value: label, Count: 1})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count < out[j].Count
	})
	return out
}

// DuplicateCount is the number of bales that are not the first weighted
// occurrence of their id. A bale whose id was never weighted counts too.
func DuplicateCount(bales []domain.Bale) int {
	firstWeighted := make(map[string]int, len(bales))
	for i, b := range bales {
		if !b.HasWeight() {
			continue
		}
		if _, ok := firstWeighted[b.ID]; !ok {
			firstWeighted[b.ID] = i
		}
	}

	duplicates := 0
	for i, b := range bales {
		if first, ok := firstWeighted[b.ID]; !ok || first != i {
			duplicates++
		}
	}
	return duplicates
}
