package domain

// AssessmentInput is what the quality-assessment collaborator receives for one bale.
type AssessmentInput struct {
	Field1       any            `json:"field1"`
	Field2       any            `json:"field2"`
	Field1Name   string         `json:"field1_name,omitempty"`
	Field2Name   string         `json:"field2_name,omitempty"`
	MappedValues map[string]any `json:"mapped_values"`
}
