package core

import "strings"

// mobilePrefixes maps country prefixes that carry an extra mobile digit in
// provider payloads to the canonical international prefix.
var mobilePrefixes = map[string]string{
	"549": "54",
}

// NormalizeNumber collapses the mobile variant of a country prefix so the same
// subscriber always yields the same number. Applying it twice is a no-op: a
// rest starting with the mobile digit is left alone, since stripping it would
// expose another variant prefix.
func NormalizeNumber(number string) string {
	number = strings.TrimSpace(number)
	number = strings.TrimPrefix(number, "+")
	for variant, canonical := range mobilePrefixes {
		rest, ok := strings.CutPrefix(number, variant)
		if !ok || strings.HasPrefix(rest, variant[len(canonical):]) {
			continue
		}
		return canonical + rest
	}
	return number
}

func NormalizeNumbers(numbers []string) []string {
	if len(numbers) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(numbers))
	for _, number := range numbers {
		if normalized := NormalizeNumber(number); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}
