package sanitizer

import "strings"

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func SanitizeLabel(input string) string {
	p := Pipeline{
		TrimAndNormalize,
		strings.ToLower,
	}
	return p.Apply(input)
}

// SanitizeTimeSlot only trims: slots are opaque labels matched byte for byte
// at claim time.
func SanitizeTimeSlot(input string) string {
	return strings.TrimSpace(input)
}

// SanitizeSlice applies strategy to every value and drops empty results and
// duplicates, keeping first-seen order.
func SanitizeSlice(values []string, strategy Strategy) []string {
	seen := make(map[string]struct{})
	out := []string{}

	for _, v := range values {
		s := strategy(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}

func SanitizeTimeSlots(slots []string) []string {
	return SanitizeSlice(slots, SanitizeTimeSlot)
}
