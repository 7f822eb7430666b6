package permission

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ApplyMask transforms a field value under the given rule. It is pure and
// total: nil and empty inputs come back unchanged, unparseable input degrades
// to a fully opaque placeholder rather than leaking the original.
//
// All string rules operate on runes, not bytes, so multi-byte names and IDs
// mask correctly.
func ApplyMask(value interface{}, rule MaskRule, pattern string) interface{} {
	if value == nil {
		return nil
	}

	str, ok := stringify(value, rule)
	if !ok {
		return value
	}
	if str == "" {
		return value
	}

	switch rule {
	case MaskPhone:
		return maskPhone(str)
	case MaskIDCard:
		return maskIDCard(str)
	case MaskBankCard:
		return maskBankCard(str)
	case MaskName:
		return maskName(str)
	case MaskEmail:
		return maskEmail(str)
	case MaskAmountRange:
		return maskAmountRange(str)
	case MaskCustom:
		return maskCustom(str, pattern)
	}
	return value
}

// stringify converts the supported value shapes to a string. Numeric values
// are only meaningful to the amount_range rule; other rules leave non-string
// values untouched.
func stringify(value interface{}, rule MaskRule) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		if rule == MaskAmountRange {
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
	case int:
		if rule == MaskAmountRange {
			return strconv.Itoa(v), true
		}
	case int64:
		if rule == MaskAmountRange {
			return strconv.FormatInt(v, 10), true
		}
	case fmt.Stringer:
		return v.String(), true
	}
	return "", false
}

// maskPhone keeps the first 3 and last 4 characters: "13812345678" becomes
// "138****5678". Anything shorter than 7 characters is fully opaque.
func maskPhone(s string) string {
	runes := []rune(s)
	if len(runes) < 7 {
		return "****"
	}
	return string(runes[:3]) + "****" + string(runes[len(runes)-4:])
}

func maskIDCard(s string) string {
	runes := []rune(s)
	if len(runes) < 7 {
		return strings.Repeat("*", 11)
	}
	return string(runes[:3]) + strings.Repeat("*", 11) + string(runes[len(runes)-4:])
}

// maskBankCard keeps only the last 4 characters, padding with as many stars
// as were removed.
func maskBankCard(s string) string {
	runes := []rune(s)
	if len(runes) < 4 {
		return "****"
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

// maskName keeps only the last character. Single-character names come back
// unchanged; masking them would leave nothing.
func maskName(s string) string {
	runes := []rune(s)
	if len(runes) <= 1 {
		return s
	}
	return strings.Repeat("*", len(runes)-1) + string(runes[len(runes)-1:])
}

// maskEmail hides the local part. Short local parts (3 characters or fewer)
// are fully replaced; longer ones keep their first and last character. Input
// without an "@" is not an address and is fully replaced.
func maskEmail(s string) string {
	at := strings.Index(s, "@")
	if at < 0 {
		return "***@***"
	}

	local := []rune(s[:at])
	domain := s[at:]
	if len(local) <= 3 {
		return "***" + domain
	}
	return string(local[0]) + "***" + string(local[len(local)-1]) + domain
}

// maskAmountRange buckets a numeric value into a coarse range so relative
// magnitude survives but the amount does not.
func maskAmountRange(s string) string {
	amount, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return "***"
	}

	switch {
	case amount < 1_000:
		return "< 1K"
	case amount < 10_000:
		return "1K-10K"
	case amount < 100_000:
		return "10K-100K"
	default:
		return "> 100K"
	}
}

// maskCustom replaces every match of the stored pattern with stars. Semantics
// beyond "apply the pattern" belong to whoever authored it; an uncompilable
// pattern degrades to a fully opaque value.
func maskCustom(s, pattern string) string {
	if pattern == "" {
		return "***"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "***"
	}
	return re.ReplaceAllString(s, "***")
}

// Decide maps a field permission onto a concrete per-field outcome. A hidden
// field becomes Redacted, which callers translate to "omit entirely", not
// "set to null".
func Decide(permType PermissionType, value interface{}, rule MaskRule, pattern string) FieldDecision {
	switch permType {
	case PermissionHidden:
		return FieldDecision{Kind: DecisionRedacted}
	case PermissionMasked:
		return FieldDecision{Kind: DecisionMasked, Value: ApplyMask(value, rule, pattern)}
	case PermissionRead:
		return FieldDecision{Kind: DecisionReadOnly, Value: value}
	default:
		return FieldDecision{Kind: DecisionVisible, Value: value}
	}
}
