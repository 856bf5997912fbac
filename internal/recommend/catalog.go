package recommend

import (
	"strings"

	"smartdate"
)

// Confidence tiers for advisory prefixes.
const (
	confirmedAt  = 90
	verifyAt     = 75
	prefixOK     = "[confirmed] "
	prefixVerify = "[verify quality] "
	prefixRisk   = "[non-conformity risk] "

	noDetectionText = "No date detected"
	unknownText     = "Unknown category"
)

// Base advisory text per date variety. Keys are lowercase and trimmed.
var catalog = map[string]string{
	"alig":                           "Traditional dry date, ideal for long-term storage",
	"bessra":                         "Very dry, well suited for food industry processing",
	"deglet nour dryer":              "Dry date, rehydrate before consumption",
	"deglet nour oily":               "Very tender and rich, excellent for direct consumption",
	"deglet nour oily treated":       "Already treated, ready for packaging",
	"deglet nour semi-dryer":         "Intermediate texture, recommended for retail",
	"deglet nour semi-dryer treated": "Improved stability, good shelf life",
	"deglet nour semi-oily":          "Premium quality, ideal for export",
	"deglet nour semi-oily treated":  "Optimal after treatment, ready for use",
	"kenta":                          "Artisanal date, recommended as a local product",
	"kintichi":                       "Rare variety, intended for the specialty market",
}

// Advice maps a (label, confidence) pair to advisory text. It is total and
// deterministic: unknown labels get a generic advisory, and the "none"
// sentinel bypasses confidence tiering entirely.
func Advice(label string, confidence int) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" || key == smartdate.LabelNone {
		return noDetectionText
	}

	base, ok := catalog[key]
	if !ok {
		base = unknownText
	}

	switch {
	case confidence >= confirmedAt:
		return prefixOK + base
	case confidence >= verifyAt:
		return prefixVerify + base
	default:
		return prefixRisk + base
	}
}

// Known reports whether the label has a non-default catalog entry.
func Known(label string) bool {
	_, ok := catalog[strings.ToLower(strings.TrimSpace(label))]
	return ok
}
