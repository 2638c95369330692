package pipeline

import (
	"fmt"
	"strings"

	"github.com/health-atlas/atlas-cli/internal/model"
)

// FormatReport generates a human-readable validation report for one outcome.
func FormatReport(out model.ValidationOutcome) string {
	var b strings.Builder

	name := out.Provider.FullName
	if name == "" {
		name = "(unnamed provider)"
	}
	fmt.Fprintf(&b, "# Validation Report: %s\n", name)
	if out.Provider.NPI != "" {
		fmt.Fprintf(&b, "NPI: %s\n", out.Provider.NPI)
	}
	b.WriteString("\n")

	// Verdict.
	b.WriteString("## Verdict\n")
	fmt.Fprintf(&b, "- Confidence: %.3f (%s)\n", out.Confidence.Score, out.Confidence.Tier)
	fmt.Fprintf(&b, "- Path: %s\n", out.Confidence.Path)
	if out.RequiresHumanReview {
		fmt.Fprintf(&b, "- Human review required: %s\n", out.ReviewReason)
	} else {
		b.WriteString("- Human review required: no\n")
	}
	b.WriteString("\n")

	// Score breakdown.
	bd := out.Confidence.Breakdown
	b.WriteString("## Score Breakdown\n")
	fmt.Fprintf(&b, "- identity: %.2f\n", bd.Identity)
	fmt.Fprintf(&b, "- address: %.2f\n", bd.Address)
	fmt.Fprintf(&b, "- completeness: %.2f\n", bd.Completeness)
	fmt.Fprintf(&b, "- freshness: %.2f\n", bd.Freshness)
	fmt.Fprintf(&b, "- enrichment: %.2f\n", bd.Enrichment)
	fmt.Fprintf(&b, "- risk: %.2f (subtracted)\n\n", bd.Risk)

	// Source execution.
	b.WriteString("## Sources\n")
	for _, src := range model.SourcePriority {
		exec, ok := out.Execution.Sources[src]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (%dms)\n", src, exec.Status, exec.LatencyMS)
		if exec.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", exec.Error)
		}
	}
	b.WriteString("\n")

	// Conflicts.
	b.WriteString("## Conflicts\n")
	if len(out.Conflicts) == 0 {
		b.WriteString("None detected.\n\n")
	} else {
		for _, c := range out.Conflicts {
			fmt.Fprintf(&b, "- %s: input %q vs %s %q\n", c.Field, c.InputValue, c.Source, c.SourceValue)
		}
		b.WriteString("\n")
	}

	// Fraud indicators.
	b.WriteString("## Fraud Indicators\n")
	if len(out.FraudIndicators) == 0 {
		b.WriteString("None triggered.\n\n")
	} else {
		for _, fi := range out.FraudIndicators {
			fmt.Fprintf(&b, "- %s (severity %.1f): %s\n", fi.Name, fi.Severity, fi.Detail)
		}
		b.WriteString("\n")
	}

	// Golden record with provenance.
	b.WriteString("## Golden Record\n")
	if len(out.Golden.Fields) == 0 {
		b.WriteString("No fields resolved.\n")
	} else {
		for _, field := range model.ProviderFields {
			gf, ok := out.Golden.Fields[field]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s [%s]\n", field, gf.Value, gf.Source)
		}
	}

	return b.String()
}
