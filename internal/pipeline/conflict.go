// Package pipeline implements the validation pipeline: evidence collection,
// conflict detection, fraud screening, confidence scoring, and golden record
// assembly for one provider record at a time.
package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/health-atlas/atlas-cli/internal/model"
)

// addressAbbrevs maps common street abbreviations to their long forms so
// "123 Main St" and "123 Main Street" compare equal.
var addressAbbrevs = map[string]string{
	"st":   "street",
	"ave":  "avenue",
	"blvd": "boulevard",
	"dr":   "drive",
	"rd":   "road",
	"ln":   "lane",
	"ct":   "court",
	"pl":   "place",
	"hwy":  "highway",
	"pkwy": "parkway",
	"ste":  "suite",
	"apt":  "apartment",
	"fl":   "floor",
	"n":    "north",
	"s":    "south",
	"e":    "east",
	"w":    "west",
}

var deaccent = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// normalizeValue prepares a field value for comparison: lowercase, strip
// diacritics, collapse whitespace, drop punctuation. ZIP codes additionally
// truncate to their 5-digit prefix and addresses expand abbreviations.
func normalizeValue(field, value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return ""
	}

	if stripped, _, err := transform.String(deaccent, v); err == nil {
		v = stripped
	}

	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == ',' || r == '-' || r == '/' || r == '#':
			b.WriteByte(' ')
		}
	}
	v = strings.Join(strings.Fields(b.String()), " ")

	switch field {
	case model.FieldZipCode:
		if i := strings.IndexByte(v, ' '); i > 0 {
			v = v[:i]
		}
		if len(v) > 5 {
			v = v[:5]
		}
	case model.FieldAddress:
		words := strings.Fields(v)
		for i, w := range words {
			if long, ok := addressAbbrevs[w]; ok {
				words[i] = long
			}
		}
		v = strings.Join(words, " ")
	case model.FieldPhone:
		v = digitsOnly(v)
		if len(v) == 11 && v[0] == '1' {
			v = v[1:]
		}
	}
	return v
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DetectConflicts compares the provider's self-reported fields against every
// successful source payload and records each material disagreement. Sources
// are walked in priority order so conflict output is deterministic. Empty
// values on either side never conflict.
func DetectConflicts(p model.NormalizedProvider, ev model.EvidenceSet) model.ConflictSet {
	var conflicts model.ConflictSet
	for _, res := range ev.InPriorityOrder() {
		if !res.OK() {
			continue
		}
		comparable := res.ComparableFields()
		for _, field := range model.ProviderFields {
			sourceVal, ok := comparable[field]
			if !ok {
				continue
			}
			inputVal := p.Field(field)
			if inputVal == "" || sourceVal == "" {
				continue
			}
			if normalizeValue(field, inputVal) == normalizeValue(field, sourceVal) {
				continue
			}
			conflicts = append(conflicts, model.Conflict{
				Field:       field,
				InputValue:  inputVal,
				SourceValue: sourceVal,
				Source:      res.Source,
			})
		}
	}
	return conflicts
}
