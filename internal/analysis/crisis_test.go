package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCrisis(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty text", "", false},
		{"ordinary journal entry", "I had a great day", false},
		{"case insensitive match", "I want to DIE", true},
		{"phrase inside a sentence", "some days I feel like I can't go on anymore", true},
		{"exact phrase", "end it all", true},
		{"substring false positive is accepted", "I want to diet and exercise more", true},
		{"unrelated negative mood", "work was exhausting and I feel terrible", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectCrisis(tc.text))
		})
	}
}
