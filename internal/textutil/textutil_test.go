package textutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "WBC 5.1", []string{"WBC 5.1"}},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"lone newline", "\n", []string{""}},
		{"blank middle", "a\n\nb", []string{"a", "", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"bare cr", "a\rb", []string{"a", "b"}},
		{"form feed", "a\fb", []string{"a", "b"}},
		{"line separator", "a\u2028b", []string{"a", "b"}},
		{"cyrillic", "Гемоглобин\nЛейкоциты", []string{"Гемоглобин", "Лейкоциты"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SplitLines(tt.in)); diff != "" {
				t.Errorf("SplitLines(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.12, Round(0.125, 2))
	assert.Equal(t, 0.68, Round(0.675, 2))
	assert.Equal(t, 0.3333, Round(1.0/3.0, 4))
	assert.Equal(t, 61.5, Round(61.5, 1))
	assert.Equal(t, 0.0, Round(0, 3))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(1.7, 0, 1))
	assert.Equal(t, 0.0, Clamp(-0.2, 0, 1))
	assert.Equal(t, 0.4, Clamp(0.4, 0, 1))
}

func TestIsCyrLatLetter(t *testing.T) {
	for _, r := range "AzЖжЁё" {
		assert.True(t, IsCyrLatLetter(r), string(r))
	}
	for _, r := range "1 %*(" {
		assert.False(t, IsCyrLatLetter(r), string(r))
	}
}

func TestNormalize(t *testing.T) {
	decomposed := "\u0435\u0308"
	assert.Equal(t, "\u0451", Normalize(decomposed))
	assert.True(t, IsBlank(" \t\n"))
	assert.False(t, IsBlank(" x "))
}
