package model

// Conflict records a field-level disagreement between the input record and an
// authoritative source. Conflicts are detected, never resolved here;
// resolution belongs to the golden record builder.
type Conflict struct {
	Field       string `json:"field"`
	InputValue  string `json:"input_value"`
	SourceValue string `json:"source_value"`
	Source      Source `json:"source"`
}

// ConflictSet is an ordered, read-only sequence of detected conflicts. Order
// is stable for identical inputs: sources in SourcePriority order, fields in
// ProviderFields order within a source.
type ConflictSet []Conflict

// FieldNames returns the distinct conflicting field names in detection order.
func (cs ConflictSet) FieldNames() []string {
	seen := make(map[string]bool, len(cs))
	var names []string
	for _, c := range cs {
		if !seen[c.Field] {
			seen[c.Field] = true
			names = append(names, c.Field)
		}
	}
	return names
}

// HasField reports whether any conflict touches the given field.
func (cs ConflictSet) HasField(field string) bool {
	for _, c := range cs {
		if c.Field == field {
			return true
		}
	}
	return false
}
