package labdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountHelixPairs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single pair", "Гемоглобин\n145", 1},
		{"flagged value", "Лейкоциты\n↓ 3.1\nТромбоциты\n+ 410", 2},
		{"name starting with digit", "1 Гемоглобин\n145", 0},
		{"short name", "Hb\n145", 0},
		{"blank line between", "Гемоглобин\n\n145", 0},
		{"inline values do not pair", "Гемоглобин 145\nЛейкоциты 5.2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountHelixPairs(tt.text))
		})
	}
}

func TestIsMedsiFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"three code lines", "(WBC) Лейкоциты\n(RBC) Эритроциты\n(HGB) Гемоглобин", true},
		{"two code lines with units", "10*9/л\n(WBC) тест\n(RBC) тест", true},
		{"two code lines with esr unit", "(ESR) СОЭ 7 мм/час\n(PLT) 250", true},
		{"two code lines without units", "(WBC) тест\n(RBC) тест", false},
		{"units only", "Лейкоциты 5.1 10*9/л", false},
		{"cyrillic codes", "(СОЭ) 7\n(ГЕМ) 140\n(ЛЕЙ) 5", true},
		{"plain text", "Гемоглобин 145 г/л", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMedsiFormat(tt.text))
		})
	}
}

func TestLookupPredicate(t *testing.T) {
	for _, name := range PredicateNames() {
		fn, ok := LookupPredicate(name)
		assert.True(t, ok, name)
		assert.NotNil(t, fn, name)
	}

	_, ok := LookupPredicate("is_invitro_format")
	assert.False(t, ok)
}

func TestRegex_MinCount(t *testing.T) {
	r, err := NewRegex(`^\(\w+\)\s`, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, r.MinCount)

	r, err = NewRegex(`^\(\w+\)\s`, 2)
	assert.NoError(t, err)
	assert.False(t, r.fires("(WBC) 5.1", ""))
	assert.True(t, r.fires("(WBC) 5.1\n(rbc) 4.6", ""))
}

func TestLiteral_CaseInsensitive(t *testing.T) {
	l := NewLiteral("ООО «ИНВИТРО»")
	assert.True(t, l.fires("", "ооо «инвитро» лаборатория"))
	assert.Equal(t, "name:ООО «ИНВИТРО»", Signature{Kind: "name", Rule: l}.Descriptor())
}
