package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

func buildAssessmentPrompt(input domain.AssessmentInput) (string, error) {
	other := input.MappedValues
	if other == nil {
		other = map[string]any{}
	}
	otherJSON, err := json.Marshal(other)
	if err != nil {
		return "", fmt.Errorf("marshal bale metrics: %w", err)
	}

	return fmt.Sprintf(`Act as a professional cotton classer. Analyze this HVI data for a single bale.
%s: %s
%s: %s
Other Data: %s

Provide a strict 3-sentence professional assessment of this cotton's quality, spinning potential, and any premium/discount implications.
Do not use introductory filler words.
`,
		label(input.Field1Name, "Micronaire"), domain.ScalarString(input.Field1),
		label(input.Field2Name, "Strength"), domain.ScalarString(input.Field2),
		otherJSON,
	), nil
}

func label(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
