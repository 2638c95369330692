package model

// SourceSelfReported marks a golden record field that fell back to the
// provider's own submitted value.
const SourceSelfReported = "self_reported"

// GoldenField is one resolved field value with its provenance.
type GoldenField struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// GoldenRecord is the merged, authoritative version of a provider's data.
// Fields map canonical field names to winning values; provenance records
// which source supplied each winner.
type GoldenRecord struct {
	Fields map[string]GoldenField `json:"fields"`
}

// Value returns the resolved value for a canonical field, or empty.
func (g GoldenRecord) Value(field string) string {
	return g.Fields[field].Value
}

// SourceOf returns the provenance source for a canonical field, or empty.
func (g GoldenRecord) SourceOf(field string) string {
	return g.Fields[field].Source
}
