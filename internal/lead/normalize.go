package lead

import (
	"regexp"
	"strings"
)

// Token tables mapping free-text CSV values to canonical enum codes. The
// tables are read-only after init; lookups are pure.
var (
	cityTokens = map[string]string{
		"chandigarh": "CHANDIGARH",
		"mohali":     "MOHALI",
		"zirakpur":   "ZIRAKPUR",
		"panchkula":  "PANCHKULA",
		"other":      "OTHER",
	}

	propertyTypeTokens = map[string]string{
		"apartment": "APARTMENT",
		"villa":     "VILLA",
		"plot":      "PLOT",
		"office":    "OFFICE",
		"retail":    "RETAIL",
	}

	bhkTokens = map[string]string{
		"studio": "STUDIO",
		"1":      "ONE",
		"2":      "TWO",
		"3":      "THREE",
		"4":      "FOUR",
	}

	purposeTokens = map[string]string{
		"buy":  "BUY",
		"rent": "RENT",
	}

	timelineTokens = map[string]string{
		"0-3m":      "ZERO_TO_THREE_MONTHS",
		"3-6m":      "THREE_TO_SIX_MONTHS",
		">6m":       "MORE_THAN_SIX_MONTHS",
		"exploring": "EXPLORING",
	}

	sourceTokens = map[string]string{
		"website":  "WEBSITE",
		"referral": "REFERRAL",
		"walk-in":  "WALK_IN",
		"call":     "CALL",
		"other":    "OTHER",
	}

	statusTokens = map[string]string{
		"new":         "NEW",
		"qualified":   "QUALIFIED",
		"contacted":   "CONTACTED",
		"visited":     "VISITED",
		"negotiation": "NEGOTIATION",
		"converted":   "CONVERTED",
		"dropped":     "DROPPED",
	}

	tokenTables = map[string]map[string]string{
		"city":         cityTokens,
		"propertyType": propertyTypeTokens,
		"bhk":          bhkTokens,
		"purpose":      purposeTokens,
		"timeline":     timelineTokens,
		"source":       sourceTokens,
		"status":       statusTokens,
	}
)

// Normalize maps a raw token to the canonical enum value for the given field.
// The token is lower-cased and trimmed before lookup. The second return is
// false when the field has no table or the token has no match.
func Normalize(field, raw string) (string, bool) {
	table, ok := tokenTables[field]
	if !ok {
		return "", false
	}
	value, ok := table[strings.ToLower(strings.TrimSpace(raw))]
	return value, ok
}

var nonDigitRe = regexp.MustCompile(`\D`)

// digitsOnly removes every non-digit character. Phones are stored this way;
// budget cells are cleaned with it before parsing.
func digitsOnly(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}
