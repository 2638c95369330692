package model

// FraudIndicator is a single triggered heuristic with its severity weight.
type FraudIndicator struct {
	Name     string  `json:"name"`
	Severity float64 `json:"severity"`
	Detail   string  `json:"detail,omitempty"`
}

// FraudIndicatorSet is the ordered set of triggered indicators, stable by
// predicate definition order.
type FraudIndicatorSet []FraudIndicator

// Contains reports whether an indicator with the given name triggered.
func (fs FraudIndicatorSet) Contains(name string) bool {
	for _, f := range fs {
		if f.Name == name {
			return true
		}
	}
	return false
}

// TotalSeverity sums the severity weights of all triggered indicators.
func (fs FraudIndicatorSet) TotalSeverity() float64 {
	total := 0.0
	for _, f := range fs {
		total += f.Severity
	}
	return total
}

// CountAtOrAbove returns how many indicators meet the given severity.
func (fs FraudIndicatorSet) CountAtOrAbove(severity float64) int {
	n := 0
	for _, f := range fs {
		if f.Severity >= severity {
			n++
		}
	}
	return n
}
