package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTimeSlot(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already canonical", input: "12:00", want: "12:00"},
		{name: "short hour kept as written", input: "9:30", want: "9:30"},
		{name: "surrounding spaces", input: " 15:00 ", want: "15:00"},
		{name: "free-form label", input: " Mon 12:00 ", want: "Mon 12:00"},
		{name: "word kept", input: "noon", want: "noon"},
		{name: "empty", input: "  ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeTimeSlot(tt.input))
		})
	}
}

func TestSanitizeTimeSlots(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "keeps order",
			input: []string{"19:00", "12:00", "15:00"},
			want:  []string{"19:00", "12:00", "15:00"},
		},
		{
			name:  "drops duplicates after trimming",
			input: []string{"9:00", "09:00", " 9:00"},
			want:  []string{"9:00", "09:00"},
		},
		{
			name:  "drops empty values",
			input: []string{"", "12:00", "   "},
			want:  []string{"12:00"},
		},
		{
			name:  "nil input",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeTimeSlots(tt.input))
		})
	}
}

func TestPipeline_Apply(t *testing.T) {
	p := Pipeline{
		func(s string) string { return s + "a" },
		func(s string) string { return s + "b" },
	}
	assert.Equal(t, "xab", p.Apply("x"))
	assert.Equal(t, "x", Pipeline{}.Apply("x"))
}
